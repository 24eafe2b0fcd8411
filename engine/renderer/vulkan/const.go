package vulkan

/**
 * @brief Max number of material groups
 * @todo TODO: make configurable
 */
const VULKAN_MAX_MATERIAL_COUNT uint32 = 1024

/**
 * @brief Max number of simultaneously uploaded meshes, over all models
 * @todo TODO: make configurable
 */
const VULKAN_MAX_GEOMETRY_COUNT uint32 = 4096

