// Package common keeps enumerations shared by configuration and processing
// packages, so config does not have to import any of them.
package common

// Separator convention used when joining resource paths.
// ENUM(native, posix, windows)
type PathStyle int

// Separator returns path separator for the style, native resolves to the
// separator of the running platform.
func (p PathStyle) Separator(native byte) byte {
	switch p {
	case PathStylePosix:
		return '/'
	case PathStyleWindows:
		return '\\'
	default:
		return native
	}
}

// Form of the reference a rendered page uses to load extracted resources.
// ENUM(file, asset)
type ResourceScheme int

// Severity of user facing notification.
// ENUM(err, warn, info)
type NotificationType int
