package flow

import "time"

// Defaults for the saucedemo scenario.
const (
	DefaultTargetURL          = "https://www.saucedemo.com/v1/"
	DefaultUsername           = "standard_user"
	DefaultPassword           = "secret_sauce"
	DefaultSuccessURLFragment = "/inventory.html"
	DefaultTimeout            = 10 * time.Second
	DefaultAssertionMessage   = "login failed: inventory container is not visible"
)

// Selectors identifies the page elements the flow interacts with.
type Selectors struct {
	Username  string
	Password  string
	Submit    string
	Container string
}

// Config is everything a single run needs.
type Config struct {
	TargetURL          string
	Username           string
	Password           string
	Headless           bool
	Timeout            time.Duration
	SuccessURLFragment string
	Selectors          Selectors
	AssertionMessage   string
}

// DefaultSelectors returns the selectors used by the saucedemo login page.
func DefaultSelectors() Selectors {
	return Selectors{
		Username:  "[data-test='username']",
		Password:  "[data-test='password']",
		Submit:    "#login-button",
		Container: "#inventory_container",
	}
}

// DefaultConfig returns the saucedemo scenario.
func DefaultConfig() Config {
	return Config{
		TargetURL:          DefaultTargetURL,
		Username:           DefaultUsername,
		Password:           DefaultPassword,
		Headless:           false,
		Timeout:            DefaultTimeout,
		SuccessURLFragment: DefaultSuccessURLFragment,
		Selectors:          DefaultSelectors(),
		AssertionMessage:   DefaultAssertionMessage,
	}
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) assertionMessage() string {
	if c.AssertionMessage == "" {
		return DefaultAssertionMessage
	}
	return c.AssertionMessage
}
