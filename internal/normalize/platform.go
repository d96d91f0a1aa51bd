package normalize

import (
	"strings"

	"github.com/guimove/ricover/internal/model"
)

// platforms maps lowercased product names, without the VPC suffix, onto a
// platform family.
var platforms = map[string]model.Platform{
	"linux/unix":                         model.PlatformLinux,
	"linux":                              model.PlatformLinux,
	"suse linux":                         model.PlatformSUSE,
	"suse":                               model.PlatformSUSE,
	"red hat enterprise linux":           model.PlatformRHEL,
	"rhel":                               model.PlatformRHEL,
	"windows":                            model.PlatformWindows,
	"windows with sql server standard":   model.PlatformWindows,
	"windows with sql server web":        model.PlatformWindows,
	"windows with sql server enterprise": model.PlatformWindows,
}

// Platform maps a raw platform or product description string onto its
// platform family. "(Amazon VPC)" suffixes and casing are ignored. An empty
// string is an error here; callers decide what an absent platform means.
func Platform(raw string) (model.Platform, error) {
	key := strings.TrimSpace(raw)
	key = strings.TrimSuffix(key, "(Amazon VPC)")
	key = strings.ToLower(strings.TrimSpace(key))

	if p, ok := platforms[key]; ok {
		return p, nil
	}
	return "", &UnknownPlatformError{Raw: raw}
}

// RegionOf derives the region of a zone, or returns a region unchanged.
func RegionOf(locality string) (string, error) {
	region, _, err := model.ParseLocality(locality)
	if err != nil {
		return "", err
	}
	return region, nil
}
