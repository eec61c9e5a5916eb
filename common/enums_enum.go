package common

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidEnumValue = errors.New("not a valid enum value")

const (
	PathStyleNative PathStyle = iota
	PathStylePosix
	PathStyleWindows
)

var pathStyleNames = []string{"native", "posix", "windows"}

func PathStyleNames() []string {
	return append([]string(nil), pathStyleNames...)
}

func (p PathStyle) String() string {
	if p >= 0 && int(p) < len(pathStyleNames) {
		return pathStyleNames[p]
	}
	return fmt.Sprintf("PathStyle(%d)", int(p))
}

func (p PathStyle) IsValid() bool {
	return p >= 0 && int(p) < len(pathStyleNames)
}

func ParsePathStyle(name string) (PathStyle, error) {
	if i := indexOf(pathStyleNames, name); i >= 0 {
		return PathStyle(i), nil
	}
	return PathStyle(0), fmt.Errorf("%s is %w", name, ErrInvalidEnumValue)
}

func (p PathStyle) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PathStyle) UnmarshalText(text []byte) error {
	v, err := ParsePathStyle(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

const (
	ResourceSchemeFile ResourceScheme = iota
	ResourceSchemeAsset
)

var resourceSchemeNames = []string{"file", "asset"}

func ResourceSchemeNames() []string {
	return append([]string(nil), resourceSchemeNames...)
}

func (r ResourceScheme) String() string {
	if r >= 0 && int(r) < len(resourceSchemeNames) {
		return resourceSchemeNames[r]
	}
	return fmt.Sprintf("ResourceScheme(%d)", int(r))
}

func (r ResourceScheme) IsValid() bool {
	return r >= 0 && int(r) < len(resourceSchemeNames)
}

func ParseResourceScheme(name string) (ResourceScheme, error) {
	if i := indexOf(resourceSchemeNames, name); i >= 0 {
		return ResourceScheme(i), nil
	}
	return ResourceScheme(0), fmt.Errorf("%s is %w", name, ErrInvalidEnumValue)
}

func (r ResourceScheme) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *ResourceScheme) UnmarshalText(text []byte) error {
	v, err := ParseResourceScheme(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

const (
	NotificationTypeErr NotificationType = iota
	NotificationTypeWarn
	NotificationTypeInfo
)

var notificationTypeNames = []string{"err", "warn", "info"}

func (n NotificationType) String() string {
	if n >= 0 && int(n) < len(notificationTypeNames) {
		return notificationTypeNames[n]
	}
	return fmt.Sprintf("NotificationType(%d)", int(n))
}

func (n NotificationType) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}
