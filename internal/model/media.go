package model

const (
	MaxImageWidth     = 1600
	MaxImageHeight    = 1600
	ImageJPEGQuality  = 85
	ImageExt          = ".jpg"
	ImageCacheControl = "public, max-age=31536000" // 1 year
)

// Supported image content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

var allowedImageTypes = map[string]struct{}{
	ContentTypeJPEG: {},
	ContentTypePNG:  {},
	ContentTypeGIF:  {},
	ContentTypeWebP: {},
}

// Error codes for HTTP responses
const (
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidImageType = "INVALID_IMAGE_TYPE"
)

// Domain errors for media operations
var (
	ErrFileTooLarge     = NewError(KindValidation, "file too large")
	ErrInvalidImageType = NewError(KindValidation, "unsupported image type, allowed: jpeg, png, gif, webp")
	ErrAssetNotFound    = NewError(KindNotFound, "asset not found")
)

// Asset is the stored reference to an uploaded image. It is copied verbatim
// onto the post row.
type Asset struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
}

// IsAllowedImageType reports if the provided content type is supported
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}
