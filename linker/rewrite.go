package linker

import (
	"strings"
)

// Reference is the exact text the gRPC node generator emits to load the
// sibling messages file.
func Reference(messagesFile string) string {
	return "require('./" + messagesFile + "');"
}

// Rewrite replaces the single relative reference to messagesFile in
// servicesText with a reference to messagesPath. Backslashes become forward
// slashes so the generated text is the same on every platform.
//
// The reference must occur exactly once; anything else means the generator
// output does not follow the convention this package was written against.
func Rewrite(servicesText, messagesFile, messagesPath string) (string, error) {
	ref := Reference(messagesFile)
	switch n := strings.Count(servicesText, ref); n {
	case 1:
	case 0:
		return "", &LinkError{MessagesFile: messagesFile, Reference: ref, Count: 0}
	default:
		return "", &LinkError{MessagesFile: messagesFile, Reference: ref, Count: n}
	}
	return strings.Replace(servicesText, ref, "require('"+PortablePath(messagesPath)+"');", 1), nil
}

// PortablePath converts path to forward slashes and escapes it for a
// single-quoted JavaScript string.
func PortablePath(path string) string {
	p := strings.ReplaceAll(path, `\`, "/")
	return strings.ReplaceAll(p, "'", `\'`)
}
