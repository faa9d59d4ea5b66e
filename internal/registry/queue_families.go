package registry

import (
	"github.com/cockroachdb/errors"
)

var ErrNoQueueFamily = errors.New("no queue family supports the required operations")

type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
}

func (i *QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

// Unique returns the distinct family indices, graphics first. Incomplete
// indices yield only the families that were found.
func (i *QueueFamilyIndices) Unique() []int {
	var families []int
	if i.GraphicsFamily != nil {
		families = append(families, *i.GraphicsFamily)
	}
	if i.PresentFamily != nil && (i.GraphicsFamily == nil || *i.PresentFamily != *i.GraphicsFamily) {
		families = append(families, *i.PresentFamily)
	}
	return families
}

// Shared reports whether graphics and present resolve to the same family.
func (i *QueueFamilyIndices) Shared() bool {
	return i.IsComplete() && *i.GraphicsFamily == *i.PresentFamily
}

// QueueFamilySource answers capability questions about the queue families of
// one physical device against one surface.
type QueueFamilySource interface {
	QueueFamilyCount() int
	SupportsGraphics(index int) bool
	SupportsPresent(index int) (bool, error)
}

// FindQueueFamilies scans families in index order and records the first family
// offering graphics and the first offering presentation. Scanning stops as
// soon as both roles are filled.
func FindQueueFamilies(source QueueFamilySource) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{}

	for queueFamilyIdx := 0; queueFamilyIdx < source.QueueFamilyCount(); queueFamilyIdx++ {
		if indices.GraphicsFamily == nil && source.SupportsGraphics(queueFamilyIdx) {
			indices.GraphicsFamily = new(int)
			*indices.GraphicsFamily = queueFamilyIdx
		}

		if indices.PresentFamily == nil {
			supported, err := source.SupportsPresent(queueFamilyIdx)
			if err != nil {
				return indices, errors.Wrapf(err, "query present support for queue family %d", queueFamilyIdx)
			}

			if supported {
				indices.PresentFamily = new(int)
				*indices.PresentFamily = queueFamilyIdx
			}
		}

		if indices.IsComplete() {
			return indices, nil
		}
	}

	if indices.GraphicsFamily == nil {
		return indices, errors.Mark(errors.New("no graphics-capable queue family"), ErrNoQueueFamily)
	}
	return indices, errors.Mark(errors.New("no queue family can present to the surface"), ErrNoQueueFamily)
}
