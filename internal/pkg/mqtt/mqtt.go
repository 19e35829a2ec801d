package mqtt

import (
	"errors"
	"strings"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gosimple/slug"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

type service struct {
	client paho_mqtt.Client
}

func New(client paho_mqtt.Client) *service {
	return &service{
		client: client,
	}
}

func (s *service) Connect() error {
	token := s.client.Connect()
	res := token.WaitTimeout(time.Second * 5)
	if res {
		return nil
	}
	if err := token.Error(); err != nil {
		return err
	}
	return errors.New("unable to connect in time")
}

// identifier turns a device key into a topic-safe slug.
func identifier(key string) string {
	return strings.ReplaceAll(slug.Make(key), "-", "_")
}

// component maps a device type onto the Home Assistant component that
// renders it.
func component(dt model.DeviceType) string {
	switch dt {
	case model.DeviceTypeLight, model.DeviceTypeDimmer:
		return "light"
	case model.DeviceTypeWindowCovering:
		return "cover"
	case model.DeviceTypeTemperatureSensor:
		return "sensor"
	case model.DeviceTypeFan:
		return "fan"
	case model.DeviceTypeScene:
		return "scene"
	default:
		return "switch"
	}
}
