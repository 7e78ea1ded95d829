package cascade

import "strings"

// interpolate replaces {name} placeholders in an explanation template with
// the record's display values. Unknown placeholders are left as-is, so a
// template typo is visible in the output instead of silently vanishing.
func interpolate(template string, vars map[string]string) string {
	var b strings.Builder

	b.Grow(len(template))

	for {
		start := strings.IndexByte(template, '{')
		if start < 0 {
			b.WriteString(template)

			break
		}

		end := strings.IndexByte(template[start:], '}')
		if end < 0 {
			b.WriteString(template)

			break
		}

		name := template[start+1 : start+end]

		b.WriteString(template[:start])

		if v, ok := vars[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(template[start : start+end+1])
		}

		template = template[start+end+1:]
	}

	return b.String()
}
