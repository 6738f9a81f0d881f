package metrics

import (
	"strconv"
	"strings"
)

const (
	codeLabelName   = "code"
	methodLabelName = "method"
	pathLabelName   = "path"
)

var requestLabelNames = []string{codeLabelName, methodLabelName, pathLabelName}

func methodLabel(method string) string {
	return strings.ToUpper(method)
}

// pathLabel collapses path segments not registered in paths down to "-".
func pathLabel(paths pathTree, path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	current := paths
	for i, segment := range segments {
		if next, ok := current[segment]; ok {
			current = next
			continue
		}
		if next, ok := current["-"]; ok {
			segments[i] = "-"
			current = next
			continue
		}
		return "/-"
	}
	return "/" + strings.Join(segments, "/")
}

func codeLabel(code int) string {
	return strconv.Itoa(code)
}
