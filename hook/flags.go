package hook

import (
	"fmt"
	"strings"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/emit"
	"github.com/chazu/modder/query"
)

// Flags selects which hooks are generated and how they behave.
type Flags uint8

const (
	Pre                 Flags = 1 << iota // call a hook before the original body
	Post                                  // call a hook after the original body
	ReferenceParameters                   // pass value-typed parameters by reference
	AlterResult                           // let hooks rewrite the result
	Cancellable                           // let the pre hook skip the original body

	None    Flags = 0
	Default       = Pre | Post | ReferenceParameters | AlterResult | Cancellable
)

var flagLetters = []struct {
	letter byte
	flag   Flags
}{
	{'b', Pre},
	{'e', Post},
	{'r', ReferenceParameters},
	{'c', Cancellable},
	{'a', AlterResult},
}

// Has reports whether every flag in x is set.
func (f Flags) Has(x Flags) bool { return f&x == x }

// String renders the flags in pattern notation, e.g. "berca".
func (f Flags) String() string {
	var sb strings.Builder
	for _, l := range flagLetters {
		if f.Has(l.flag) {
			sb.WriteByte(l.letter)
		}
	}
	if sb.Len() == 0 {
		return "none"
	}
	return sb.String()
}

// ParseFlags reads the flag letters that follow '$' in a pattern:
// b (pre), e (post), r (reference parameters), c (cancellable) and
// a (alter result). Letters may repeat and come in any order.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return None, fmt.Errorf("%w: more than one '$' in flags %q", cil.ErrConfiguration, s)
		}
		found := false
		for _, l := range flagLetters {
			if l.letter == c {
				f |= l.flag
				found = true
				break
			}
		}
		if !found {
			return None, fmt.Errorf("%w: invalid hook flag %q in %q", cil.ErrConfiguration, c, s)
		}
	}
	return f, nil
}

// FromQuery returns the flags of a parsed pattern. A pattern without a '$'
// suffix gets Default.
func FromQuery(q *query.Query) (Flags, error) {
	if !q.HasFlags {
		return Default, nil
	}
	return ParseFlags(q.Flags)
}

func (f Flags) options() emit.Options {
	return emit.Options{
		ReferenceParameters: f.Has(ReferenceParameters),
		AlterResult:         f.Has(AlterResult),
		Cancellable:         f.Has(Cancellable),
	}
}
