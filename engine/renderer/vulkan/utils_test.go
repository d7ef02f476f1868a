package vulkan

import (
	"encoding/binary"
	"sync"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestResultStrings(t *testing.T) {
	assert.Equal(t, "VK_ERROR_OUT_OF_DATE_KHR", VulkanResultString(vk.ErrorOutOfDate, false))
	assert.Contains(t, VulkanResultString(vk.ErrorDeviceLost, true), "has been lost")
	assert.Equal(t, "VkResult(-99)", VulkanResultString(vk.Result(-99), false))

	assert.True(t, VulkanResultIsSuccess(vk.Success))
	assert.True(t, VulkanResultIsSuccess(vk.Suboptimal))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorOutOfDate))
	assert.ErrorContains(t, resultError("vkCreateBuffer", vk.ErrorOutOfDeviceMemory), "vkCreateBuffer failed with VK_ERROR_OUT_OF_DEVICE_MEMORY")
}

func TestResultsMirrorTheDeviceContract(t *testing.T) {
	pairs := map[vk.Result]metadata.Result{
		vk.Success:                metadata.Success,
		vk.NotReady:               metadata.NotReady,
		vk.Timeout:                metadata.Timeout,
		vk.Suboptimal:             metadata.Suboptimal,
		vk.ErrorOutOfHostMemory:   metadata.ErrorOutOfHostMemory,
		vk.ErrorOutOfDeviceMemory: metadata.ErrorOutOfDeviceMemory,
		vk.ErrorDeviceLost:        metadata.ErrorDeviceLost,
		vk.ErrorSurfaceLost:       metadata.ErrorSurfaceLost,
		vk.ErrorOutOfDate:         metadata.ErrorOutOfDate,
		vk.ErrorUnknown:           metadata.ErrorUnknown,
	}
	for in, want := range pairs {
		assert.Equal(t, want, toResult(in), VulkanResultString(in, false))
	}
}

func TestFlagsMirrorVulkan(t *testing.T) {
	assert.Equal(t, uint32(vk.MemoryPropertyDeviceLocalBit), uint32(metadata.MemoryPropertyDeviceLocal))
	assert.Equal(t, uint32(vk.MemoryPropertyHostVisibleBit), uint32(metadata.MemoryPropertyHostVisible))
	assert.Equal(t, uint32(vk.MemoryPropertyHostCoherentBit), uint32(metadata.MemoryPropertyHostCoherent))
	assert.Equal(t, uint32(vk.BufferUsageStorageBufferBit), uint32(metadata.BufferUsageStorageBuffer))
	assert.Equal(t, uint32(vk.BufferUsageVertexBufferBit), uint32(metadata.BufferUsageVertexBuffer))
	assert.Equal(t, uint32(vk.PresentModeMailbox), uint32(metadata.PresentModeMailbox))
	assert.Equal(t, uint32(vk.FormatB8g8r8a8Srgb), uint32(metadata.FormatB8G8R8A8Srgb))
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "abc\x00", VulkanSafeString("abc"))
	assert.Equal(t, "abc\x00", VulkanSafeString("abc\x00"))
	assert.Equal(t, []string{"a\x00", "b\x00"}, VulkanSafeStrings([]string{"a", "b\x00"}))
	assert.Equal(t, "yes", ConditionalOperator(true, "yes", "no"))
}

func TestVkName(t *testing.T) {
	var raw [256]byte
	copy(raw[:], "VK_LAYER_KHRONOS_validation")
	assert.Equal(t, validationLayerName, vkName(raw[:]))
	assert.Equal(t, "full", vkName([]byte("full")))
}

func TestSliceUint32(t *testing.T) {
	assert.Nil(t, sliceUint32([]byte{1, 2}))

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], 0x07230203)
	binary.LittleEndian.PutUint32(data[4:], 0x00010000)
	binary.LittleEndian.PutUint32(data[8:], 42)
	words := sliceUint32(data)
	require.Len(t, words, 3)
	assert.Equal(t, uint32(0x07230203), words[0])
	assert.Equal(t, uint32(42), words[2])
}

func TestVertexInputLayout(t *testing.T) {
	bindings, attributes := vertexAttributes()
	require.Len(t, bindings, 2)
	assert.Equal(t, uint32(24), bindings[0].Stride)
	assert.Equal(t, vk.VertexInputRateVertex, bindings[0].InputRate)
	assert.Equal(t, uint32(64), bindings[1].Stride)
	assert.Equal(t, vk.VertexInputRateInstance, bindings[1].InputRate)

	require.Len(t, attributes, 6)
	for i, a := range attributes {
		assert.Equal(t, uint32(i), a.Location)
	}
	assert.Equal(t, uint32(12), attributes[1].Offset)
	for i, a := range attributes[2:] {
		assert.Equal(t, uint32(1), a.Binding)
		assert.Equal(t, uint32(i*16), a.Offset)
	}
}

func TestDebugContextCountsReports(t *testing.T) {
	core.SetLogOutput(discard{})

	var disabled *DebugContext
	assert.Nil(t, disabled.extensions())
	assert.NoError(t, disabled.checkLayers())
	assert.Empty(t, NewDebugContext(false).Layers)

	d := NewDebugContext(true)
	assert.Equal(t, []string{validationLayerName}, d.Layers)
	assert.Equal(t, []string{vk.ExtDebugReportExtensionName}, d.extensions())

	d.report(vk.DebugReportFlags(vk.DebugReportErrorBit), 0, 0, 0, 1, "Validation", "bad", nil)
	d.report(vk.DebugReportFlags(vk.DebugReportWarningBit), 0, 0, 0, 2, "Validation", "meh", nil)
	d.report(vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit), 0, 0, 0, 3, "Validation", "slow", nil)
	d.report(vk.DebugReportFlags(vk.DebugReportInformationBit), 0, 0, 0, 4, "Loader", "hello", nil)
	assert.Equal(t, uint64(1), d.Errors())
	assert.Equal(t, uint64(2), d.Warnings())
}

func TestLockPoolSerializesGroups(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.SetQueueFamily(0)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = pool.SafeCall(BufferManagement, func() error { counter++; return nil })
		}()
		go func() {
			defer wg.Done()
			_ = pool.SafeCall(BufferManagement, func() error { counter--; return nil })
		}()
	}
	wg.Wait()
	assert.Zero(t, counter)

	assert.ErrorIs(t, pool.SafeQueueCall(3, func() error { return core.ErrSubmitFailed }), core.ErrSubmitFailed)
}
