package vulkan

import "math"

/**
 * @brief Number of frames recorded ahead of the GPU when nothing else is configured.
 */
const VULKAN_DEFAULT_FRAMES_IN_FLIGHT uint32 = 2

/**
 * @brief Upper bound for frames in flight. More only adds latency.
 */
const VULKAN_MAX_FRAMES_IN_FLIGHT uint32 = 3

// Frame fences are waited without a deadline.
const VULKAN_FENCE_TIMEOUT uint64 = math.MaxUint64

const VULKAN_ENGINE_NAME = "Anima Engine"
