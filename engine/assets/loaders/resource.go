package loaders

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	ResourceTypeImage
	ResourceTypeShader
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeImage:
		return "image"
	case ResourceTypeShader:
		return "shader"
	default:
		return "none"
	}
}

type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	// *ImageData for images, []byte SPIR-V for shaders.
	Data interface{}
}
