package links

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
)

// DefaultSchemes lists the schemes a resolved link may carry when none are configured.
var DefaultSchemes = []string{"http", "https"}

// Resolver turns a raw href into an absolute URL using WHATWG parsing rules,
// the same rules browsers and colly apply.
type Resolver struct {
	parser  whatwgUrl.Parser
	schemes map[string]struct{}
}

var _ crawler.Resolver = (*Resolver)(nil)

// NewResolver builds a resolver that accepts only the given schemes.
func NewResolver(schemes []string) *Resolver {
	if len(schemes) == 0 {
		schemes = DefaultSchemes
	}
	allowed := make(map[string]struct{}, len(schemes))
	for _, s := range schemes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			allowed[s] = struct{}{}
		}
	}
	return &Resolver{
		parser:  whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign()),
		schemes: allowed,
	}
}

// Resolve resolves ref against base. The fragment is preserved and no further
// normalization happens, so two spellings of one page are distinct URLs.
func (r *Resolver) Resolve(base, ref string) (string, error) {
	resolved, err := r.parser.ParseRef(base, ref)
	if err != nil {
		return "", &crawler.ResolveError{Base: base, Ref: ref, Err: err}
	}
	abs := resolved.Href(false)
	parsed, err := url.Parse(abs)
	if err != nil {
		return "", &crawler.ResolveError{Base: base, Ref: ref, Err: err}
	}
	if _, ok := r.schemes[parsed.Scheme]; !ok {
		return "", &crawler.ResolveError{
			Base: base,
			Ref:  ref,
			Err:  fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme),
		}
	}
	return abs, nil
}

// ErrUnsupportedScheme marks links such as mailto: or javascript: that cannot be fetched.
var ErrUnsupportedScheme = errors.New("unsupported scheme")
