package mimetype_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jpl-au/dms/internal/mimetype"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"pdf", []byte("%PDF-1.7\n%..."), mimetype.PDF},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), mimetype.PNG},
		{"gif", []byte("GIF89a\x01\x00"), mimetype.GIF},
		{"jpeg", []byte("\xFF\xD8\xFF\xE0\x00\x10JFIF"), mimetype.JPEG},
		{"tiff little endian", []byte("II*\x00\x08\x00\x00\x00"), mimetype.TIFF},
		{"tiff big endian", []byte("MM\x00*\x00\x00\x00\x08"), mimetype.TIFF},
		{"zip", []byte("PK\x03\x04\x14\x00"), mimetype.Zip},
		{"text", []byte("hello world\n"), mimetype.Text},
		{"word", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0}, mimetype.Word},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mimetype.Detect(tt.data))
		})
	}
}

func TestDetectNamed(t *testing.T) {
	ole := []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0}
	assert.Equal(t, mimetype.Excel, mimetype.DetectNamed(ole, "xls"))
	assert.Equal(t, mimetype.Word, mimetype.DetectNamed(ole, "doc"))
	assert.Equal(t, mimetype.C, mimetype.DetectNamed([]byte("int main(){}\n"), ".c"))
	// Extension never overrides clearly sniffed content.
	assert.Equal(t, mimetype.Zip, mimetype.DetectNamed([]byte("PK\x03\x04"), "pdf"))
}

func TestExtensionTables(t *testing.T) {
	assert.Equal(t, mimetype.TIFF, mimetype.FromExtension(".TIF"))
	assert.Equal(t, "tif", mimetype.Extension(mimetype.TIFF))
	assert.Equal(t, "jpg", mimetype.Extension("image/jpeg; q=1"))
	assert.Equal(t, "", mimetype.FromExtension("exe"))
	assert.Equal(t, mimetype.PDF, mimetype.Resolve("pdf"))
	assert.Equal(t, mimetype.PDF, mimetype.Resolve("Application/PDF"))
	assert.True(t, mimetype.IsImage(mimetype.PNG))
	assert.False(t, mimetype.IsImage(mimetype.PDF))
}
