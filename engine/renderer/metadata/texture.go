package metadata

/** @brief The default texture name. */
const DEFAULT_TEXTURE_NAME string = "default"

/**
 * @brief Decoded texture pixels, always tightly packed RGBA8.
 */
type TextureData struct {
	/** @brief The texture Name, usually its source path. */
	Name string
	/** @brief The texture Width. */
	Width uint32
	/** @brief The texture Height. */
	Height uint32
	/** @brief The raw texture data (pixels). */
	Pixels []uint8
}

func (t *TextureData) Size() uint64 {
	return uint64(len(t.Pixels))
}
