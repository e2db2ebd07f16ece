// Package sqltemplate handles the {{variable}} placeholder syntax embedded in
// stored SQL text: extraction, occurrence-by-occurrence substitution, and
// validation that placeholders sit where positional parameters can bind.
package sqltemplate

import (
	"regexp"
	"strings"
)

// variableRegex matches {{variable_name}} placeholders. Names start with a
// letter or underscore, followed by word characters.
var variableRegex = regexp.MustCompile(`\{\{([a-zA-Z_]\w*)\}\}`)

// ExtractVariables finds all {{var}} placeholders and returns a deduplicated
// list of variable names in order of first appearance.
func ExtractVariables(sqlText string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range variableRegex.FindAllStringSubmatch(sqlText, -1) {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Occurrences returns the variable name of every {{var}} occurrence in
// left-to-right order, including repeats. Each occurrence becomes its own
// positional placeholder during substitution.
func Occurrences(sqlText string) []string {
	matches := variableRegex.FindAllStringSubmatch(sqlText, -1)
	names := make([]string, len(matches))
	for i, match := range matches {
		names[i] = match[1]
	}
	return names
}

// ReplaceNext substitutes the first remaining occurrence of {{name}} with the
// given placeholder. Substitution is deliberately single-occurrence so that a
// repeated variable name still yields one positional placeholder per
// occurrence.
func ReplaceNext(sqlText, name, placeholder string) string {
	return strings.Replace(sqlText, "{{"+name+"}}", placeholder, 1)
}

// VariablesInStringLiterals reports variables whose placeholders sit inside
// single-quoted string literals. The engine would treat the substituted
// positional parameter as literal text there, so these are rejected up front.
func VariablesInStringLiterals(sqlText string) []string {
	var problems []string
	seen := make(map[string]bool)

	inString := false
	stringStart := 0
	i := 0
	for i < len(sqlText) {
		if sqlText[i] != '\'' {
			i++
			continue
		}
		if inString {
			// Escaped quote ('') stays inside the literal.
			if i+1 < len(sqlText) && sqlText[i+1] == '\'' {
				i += 2
				continue
			}
			content := sqlText[stringStart+1 : i]
			for _, match := range variableRegex.FindAllStringSubmatch(content, -1) {
				if !seen[match[1]] {
					seen[match[1]] = true
					problems = append(problems, match[1])
				}
			}
			inString = false
		} else {
			inString = true
			stringStart = i
		}
		i++
	}
	return problems
}
