package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "single_1_page02", identifier("Single_1_page02"))
	assert.Equal(t, "shifter_1_page01", identifier("Shifter_1_page01"))
}

func TestComponent(t *testing.T) {
	assert.Equal(t, "light", component(model.DeviceTypeLight))
	assert.Equal(t, "light", component(model.DeviceTypeDimmer))
	assert.Equal(t, "cover", component(model.DeviceTypeWindowCovering))
	assert.Equal(t, "sensor", component(model.DeviceTypeTemperatureSensor))
	assert.Equal(t, "fan", component(model.DeviceTypeFan))
	assert.Equal(t, "scene", component(model.DeviceTypeScene))
	assert.Equal(t, "switch", component(model.DeviceTypeSwitch))
}

func TestRegisterMessage(t *testing.T) {
	device := model.NewDevice(model.Descriptor{ID: "Single_1", Name: "Deckenlicht", Page: "02", Type: model.DeviceTypeLight})
	msg := registerMessage(device, identifier(device.Key()))

	assert.Equal(t, "homeassistant/light/single_1_page02", msg.Tilda)
	assert.Equal(t, "Deckenlicht", msg.Name)
	assert.Equal(t, "~/state", msg.StateTopic)
	assert.Equal(t, []string{"single_1_page02"}, msg.Device.Identifiers)
}
