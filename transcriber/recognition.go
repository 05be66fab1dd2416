package transcriber

import "fmt"

// Kind classifies the outcome of one recognition.
type Kind int

const (
	Recognized Kind = iota
	Unintelligible
	ServiceError
)

func (k Kind) String() string {
	switch k {
	case Recognized:
		return "recognized"
	case Unintelligible:
		return "unintelligible"
	case ServiceError:
		return "service_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Recognition is the dispatcher's verdict for one window. Detail carries a
// diagnostic for the non-Recognized kinds.
type Recognition struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func recognized(text string) Recognition {
	return Recognition{Kind: Recognized, Text: text}
}

func unintelligible(detail string) Recognition {
	return Recognition{Kind: Unintelligible, Detail: detail}
}

// Failed builds a ServiceError recognition.
func Failed(detail string) Recognition {
	return Recognition{Kind: ServiceError, Detail: detail}
}
