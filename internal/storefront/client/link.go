package client

import (
	"net/url"
	"strings"
)

// nextPageQuery extracts the query of the rel="next" entry of a Link header.
// It returns nil when there is no next page.
func nextPageQuery(header string) url.Values {
	for _, part := range strings.Split(header, ",") {
		pieces := strings.Split(strings.TrimSpace(part), ";")
		if len(pieces) < 2 {
			continue
		}
		target := strings.TrimSpace(pieces[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}

		isNext := false
		for _, param := range pieces[1:] {
			param = strings.TrimSpace(param)
			if strings.EqualFold(param, `rel="next"`) || strings.EqualFold(param, "rel=next") {
				isNext = true
			}
		}
		if !isNext {
			continue
		}

		u, err := url.Parse(target[1 : len(target)-1])
		if err != nil {
			return nil
		}
		return u.Query()
	}
	return nil
}
