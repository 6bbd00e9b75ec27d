package session

import "fmt"

// Step is the position of the session in the checkout flow.
type Step int

// Steps. LoggedOut gates the other three.
const (
	StepLoggedOut Step = iota - 1
	StepCatalogue
	StepIdentify
	StepCheckout
)

var stepNames = map[Step]string{
	StepLoggedOut: "logged_out",
	StepCatalogue: "catalogue",
	StepIdentify:  "identify",
	StepCheckout:  "checkout",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a step name.
func (s *Step) UnmarshalText(text []byte) error {
	for step, name := range stepNames {
		if name == string(text) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", text)
}
