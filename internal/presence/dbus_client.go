package presence

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

// DBusClient defines the D-Bus operations the publisher needs.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/reelplay/internal/presence DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// RequestName claims a well-known bus name, reporting whether we became its primary owner
	RequestName(name string) (bool, error)

	// Emit broadcasts a signal from the given object path
	// path: The object path (e.g., "/org/mpris/MediaPlayer2")
	// name: The fully qualified signal name (e.g., "org.freedesktop.DBus.Properties.PropertiesChanged")
	Emit(path, name string, values ...interface{}) error

	// ExportProperties serves props at path through org.freedesktop.DBus.Properties
	ExportProperties(path string, props prop.Map) error

	// SetProperty updates an exported property
	SetProperty(iface, name string, value interface{}) error
}

// StdDBusClient is the real implementation using godbus
type StdDBusClient struct {
	conn  *dbus.Conn
	props *prop.Properties
}

// NewStdDBusClient creates a real D-Bus client connected to the session bus
func NewStdDBusClient() (DBusClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &StdDBusClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdDBusClient) Close() error {
	return c.conn.Close()
}

// RequestName claims name without queueing behind another owner
func (c *StdDBusClient) RequestName(name string) (bool, error) {
	reply, err := c.conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return false, err
	}
	return reply == dbus.RequestNameReplyPrimaryOwner, nil
}

// Emit broadcasts a signal
func (c *StdDBusClient) Emit(path, name string, values ...interface{}) error {
	return c.conn.Emit(dbus.ObjectPath(path), name, values...)
}

// ExportProperties exports props read-only at path
func (c *StdDBusClient) ExportProperties(path string, props prop.Map) error {
	exported, err := prop.Export(c.conn, dbus.ObjectPath(path), props)
	if err != nil {
		return err
	}
	c.props = exported
	return nil
}

// SetProperty updates an exported property; emission follows the property's Emit setting
func (c *StdDBusClient) SetProperty(iface, name string, value interface{}) error {
	if c.props == nil {
		return fmt.Errorf("no properties exported")
	}
	if _, dErr := c.props.Get(iface, name); dErr != nil {
		return fmt.Errorf("unknown property %s.%s: %s", iface, name, dErr.Name)
	}
	c.props.SetMust(iface, name, value)
	return nil
}
