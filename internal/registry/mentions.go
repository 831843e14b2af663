package registry

import "strings"

// ParseMentions strips leading "@agent" tokens naming known agents and
// returns them with the remaining text. A message that starts with mentions
// convenes exactly the mentioned agents instead of the roster. Parsing stops
// at the first token that is not a known mention.
func (r *Registry) ParseMentions(message string) (ids []string, rest string) {
	rest = strings.TrimLeft(message, " \t")
	seen := make(map[string]bool)
	for strings.HasPrefix(rest, "@") {
		token, tail, _ := strings.Cut(rest, " ")
		name := strings.TrimPrefix(token, "@")
		if _, ok := r.Get(name); !ok {
			break
		}
		if !seen[name] {
			seen[name] = true
			ids = append(ids, name)
		}
		rest = strings.TrimLeft(tail, " \t")
	}
	if len(ids) == 0 {
		return nil, message
	}
	return ids, rest
}
