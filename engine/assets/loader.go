package assets

import "github.com/saeedelsayed/vulkan-playground/engine/assets/loaders"

type Loader interface {
	Load(path string) (*loaders.Resource, error)
	Unload(*loaders.Resource) error
}
