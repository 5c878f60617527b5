package pipeline

import (
	"encoding/binary"
	"os"

	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
)

const spirvMagic uint32 = 0x07230203

// ReadShader loads a compiled SPIR-V blob from disk and checks that it looks
// like one.
func ReadShader(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, gfxerr.Wrapf(err, gfxerr.ErrPipelineCreation, "read shader %s", path)
	}
	if err := ValidateSPIRV(code); err != nil {
		return nil, gfxerr.Wrapf(err, gfxerr.ErrPipelineCreation, "shader %s", path)
	}
	return code, nil
}

// ValidateSPIRV rejects blobs that are empty, not word aligned, or missing
// the little-endian SPIR-V magic number.
func ValidateSPIRV(code []byte) error {
	switch {
	case len(code) == 0:
		return gfxerr.New(gfxerr.ErrPipelineCreation, "empty SPIR-V blob")
	case len(code)%4 != 0:
		return gfxerr.New(gfxerr.ErrPipelineCreation, "SPIR-V blob length %d is not a multiple of 4", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return gfxerr.New(gfxerr.ErrPipelineCreation, "bad SPIR-V magic number %#08x", magic)
	}
	return nil
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}

func createShaderModule(device core1_0.Device, code []byte) (core1_0.ShaderModule, error) {
	if err := ValidateSPIRV(code); err != nil {
		return nil, err
	}

	module, res, err := device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(code),
	})
	if err != nil {
		return nil, gfxerr.Result(res, err, gfxerr.ErrPipelineCreation, "createShaderModule")
	}
	return module, nil
}
