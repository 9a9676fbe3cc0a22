// Package assets provides the saved-media asset domain for loom.
package assets

import (
	"net/url"
	"strings"
	"time"
)

// Asset types
const (
	TypeImage = "image"
	TypeVideo = "video"
	TypeAudio = "audio"
)

// Asset categories
const (
	CategoryCharacter = "character"
	CategoryScene     = "scene"
	CategoryTexture   = "texture"
	CategoryMotion    = "motion"
	CategoryAudio     = "audio"
)

// Asset visibility values
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// MaxTags caps the number of tags stored per asset
const MaxTags = 12

// Types lists every valid asset type
var Types = []string{TypeImage, TypeVideo, TypeAudio}

// Categories lists every valid asset category
var Categories = []string{CategoryCharacter, CategoryScene, CategoryTexture, CategoryMotion, CategoryAudio}

// Visibilities lists every valid visibility value
var Visibilities = []string{VisibilityPrivate, VisibilityPublic}

// Asset is saved metadata pointing at generated or uploaded media. The
// binary content lives in the blob store; the asset row only references it.
type Asset struct {
	// ID of the asset
	ID string `json:"id"`

	// AccountID of the owner
	AccountID string `json:"account_id"`

	// Title of the asset
	Title string `json:"title"`

	// Description of the asset
	Description string `json:"description,omitempty"`

	// AssetType is image, video, or audio
	AssetType string `json:"asset_type"`

	// Category groups assets in the library
	Category string `json:"category"`

	// Visibility is private or public
	Visibility string `json:"visibility"`

	// Tags for search and filtering
	Tags []string `json:"tags"`

	// URL of the stored media
	URL string `json:"url"`

	// ThumbnailURL of a preview image, if any
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	// StoragePath is the bucket-relative path backing URL, if known
	StoragePath string `json:"storage_path,omitempty"`

	// SourceNodeType records which canvas node produced the media
	SourceNodeType string `json:"source_node_type,omitempty"`

	// SourceGenerationID links back to the generation record
	SourceGenerationID string `json:"source_generation_id,omitempty"`

	// CreatedAt is when the asset was saved
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the asset was last updated
	UpdatedAt time.Time `json:"updated_at"`
}

// IsValidType reports whether t is a known asset type
func IsValidType(t string) bool {
	return contains(Types, t)
}

// IsValidCategory reports whether c is a known category
func IsValidCategory(c string) bool {
	return contains(Categories, c)
}

// IsValidVisibility reports whether v is a known visibility value
func IsValidVisibility(v string) bool {
	return contains(Visibilities, v)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// NormalizeTags trims and lowercases tags, drops empties, and caps the
// list at MaxTags. Tags are not deduplicated; identical tags survive.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

// DefaultCategoryForType returns the library category an asset of the
// given type lands in by default.
func DefaultCategoryForType(assetType string) string {
	switch assetType {
	case TypeVideo:
		return CategoryMotion
	case TypeAudio:
		return CategoryAudio
	default:
		return CategoryCharacter
	}
}

// DefaultTagsForType returns the starter tags for a newly saved asset.
func DefaultTagsForType(assetType string) []string {
	switch assetType {
	case TypeVideo:
		return []string{"tiktok", "dance", "shorts"}
	case TypeAudio:
		return []string{"reels", "shorts"}
	default:
		return []string{"portrait", "9:16"}
	}
}

// storageMarker is the path segment preceding the bucket-relative object
// path in public storage URLs.
const storageMarker = "/storage/v1/object/public/"

// InferStoragePathFromURL extracts the bucket-relative storage path from a
// public storage URL for the given bucket. Returns "" when the URL does
// not point into the bucket.
func InferStoragePathFromURL(rawURL, bucket string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	marker := storageMarker + bucket + "/"
	idx := strings.Index(parsed.Path, marker)
	if idx < 0 {
		return ""
	}
	return parsed.Path[idx+len(marker):]
}
