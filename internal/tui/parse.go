package tui

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"caserag/internal/domain"
)

// pairRe matches key=value and key="quoted value".
var pairRe = regexp.MustCompile(`(\w+)=(?:"([^"]*)"|(\S+))`)

// ParseCase reads a case from a line of key=value pairs. Recognised keys are
// case_id, claim_type, jurisdiction (or state), property_type, amount (or
// claim_amount), date_filed (YYYY-MM-DD) and source, which restricts results
// to one source document.
func ParseCase(line string) (domain.Case, domain.Filter, error) {
	var (
		c      domain.Case
		filter domain.Filter
	)
	matches := pairRe.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return c, nil, fmt.Errorf("%w: expected key=value pairs, e.g. claim_type=Flood", domain.ErrInvalidCase)
	}
	prev := 0
	for _, loc := range matches {
		if gap := strings.TrimSpace(line[prev:loc[0]]); gap != "" {
			return c, nil, fmt.Errorf("%w: unexpected %q", domain.ErrInvalidCase, gap)
		}
		prev = loc[1]

		key := strings.ToLower(line[loc[2]:loc[3]])
		var val string
		if loc[4] >= 0 {
			val = line[loc[4]:loc[5]]
		} else {
			val = line[loc[6]:loc[7]]
		}

		switch key {
		case "case_id":
			c.CaseID = val
		case "claim_type":
			c.ClaimType = val
		case "jurisdiction", "state":
			c.Jurisdiction = val
		case "property_type":
			c.PropertyType = val
		case "amount", "claim_amount":
			v, err := strconv.ParseFloat(strings.ReplaceAll(val, ",", ""), 64)
			if err != nil {
				return c, nil, fmt.Errorf("%w: amount %q is not a number", domain.ErrInvalidCase, val)
			}
			c.ClaimAmount = &v
		case "date_filed":
			t, err := time.Parse("2006-01-02", val)
			if err != nil {
				return c, nil, fmt.Errorf("%w: date_filed %q: want YYYY-MM-DD", domain.ErrInvalidCase, val)
			}
			c.DateFiled = &t
		case "source":
			filter = domain.Filter{domain.MetaSourceDocumentID: val}
		default:
			return c, nil, fmt.Errorf("%w: unknown key %q", domain.ErrInvalidCase, key)
		}
	}
	if rest := strings.TrimSpace(line[prev:]); rest != "" {
		return c, nil, fmt.Errorf("%w: unexpected %q", domain.ErrInvalidCase, rest)
	}
	return c, filter, c.Validate()
}
