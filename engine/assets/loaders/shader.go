package loaders

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

type ShaderLoader struct{}

// Load reads a compiled SPIR-V module and checks its header.
func (sl *ShaderLoader) Load(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateSPIRV(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Resource{
		Name:     filepath.Base(path),
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     data,
	}, nil
}

func (sl *ShaderLoader) Unload(*Resource) error {
	return nil
}

func ValidateSPIRV(data []byte) error {
	if len(data) < 20 || len(data)%4 != 0 {
		return fmt.Errorf("invalid SPIR-V size %d", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data); magic != SPIRVMagic {
		return fmt.Errorf("invalid SPIR-V magic 0x%08x", magic)
	}
	return nil
}
