package leds

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// I2C wire constants for the LED MCU. The controller answers at a fixed
// address and accepts fixed-size command frames protected by an additive
// 16-bit checksum.
const (
	devAddr = 0x3a

	frameHeader = 0xa0
	statusBase  = 0x81 // status block register for slot 0; slot i is statusBase+i

	opSetBrightness = 0x01
	opSetRGB        = 0x02
	opSetOnOff      = 0x03
	opSetBlink      = 0x04
	opSetBreath     = 0x05
)

// I2CController drives the LED MCU over the i2c bus. Safe for concurrent
// use; transactions are serialized on the bus mutex.
type I2CController struct {
	mu  sync.Mutex
	bus i2c.BusCloser
	dev i2c.Dev
}

// OpenI2C initializes the host drivers and opens the LED controller on the
// named i2c bus (empty name selects the first available bus).
func OpenI2C(busName string) (*I2CController, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", busName, err)
	}

	log.Info().Str("bus", busName).Int("addr", devAddr).Msg("Opened LED controller")

	return &I2CController{
		bus: bus,
		dev: i2c.Dev{Addr: devAddr, Bus: bus},
	}, nil
}

// Status reads the 11-byte status block of one slot. A transaction failure
// or a corrupt block means the slot is not populated; both report
// Available=false without an error, so probing can stop cleanly.
func (c *I2CController) Status(ctx context.Context, id int) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var buf [11]byte
	if err := c.dev.Tx([]byte{byte(statusBase + id)}, buf[:]); err != nil {
		log.Debug().Int("led", id).Err(err).Msg("Status read failed, treating slot as absent")
		return Status{Available: false}, nil
	}

	if !verifyChecksum(buf[:]) || buf[0] > uint8(ModeBreath) {
		return Status{Available: false}, nil
	}

	return Status{
		Available: true,
		State: LightState{
			Mode:       Mode(buf[0]),
			Brightness: buf[1],
			ColorR:     buf[2],
			ColorG:     buf[3],
			ColorB:     buf[4],
			TOn:        uint16(buf[5])<<8 | uint16(buf[6]),
			TOff:       uint16(buf[7])<<8 | uint16(buf[8]),
		},
	}, nil
}

// SetOnOff turns one LED fully on or off.
func (c *I2CController) SetOnOff(ctx context.Context, id int, on bool) error {
	var v byte
	if on {
		v = 1
	}
	return c.command(ctx, id, opSetOnOff, v, 0, 0, 0)
}

// SetBlink programs a hard on/off blink cycle.
func (c *I2CController) SetBlink(ctx context.Context, id int, tOn, tOff uint16) error {
	return c.command(ctx, id, opSetBlink, byte(tOn>>8), byte(tOn), byte(tOff>>8), byte(tOff))
}

// SetBreath programs a fading breath cycle.
func (c *I2CController) SetBreath(ctx context.Context, id int, tOn, tOff uint16) error {
	return c.command(ctx, id, opSetBreath, byte(tOn>>8), byte(tOn), byte(tOff>>8), byte(tOff))
}

// SetBrightness sets the LED brightness level.
func (c *I2CController) SetBrightness(ctx context.Context, id int, level uint8) error {
	return c.command(ctx, id, opSetBrightness, level, 0, 0, 0)
}

// SetRGB sets all three color channels in one transaction.
func (c *I2CController) SetRGB(ctx context.Context, id int, r, g, b uint8) error {
	return c.command(ctx, id, opSetRGB, r, g, b, 0)
}

// Close releases the i2c bus.
func (c *I2CController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bus.Close()
}

// command writes one 10-byte command frame:
//
//	[header, slot, op, p0, p1, p2, p3, 0, csumHi, csumLo]
func (c *I2CController) command(ctx context.Context, id int, op byte, p0, p1, p2, p3 byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame := [10]byte{frameHeader, byte(id), op, p0, p1, p2, p3, 0}
	sum := checksum(frame[:8])
	frame[8] = byte(sum >> 8)
	frame[9] = byte(sum)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.dev.Tx(frame[:], nil); err != nil {
		return fmt.Errorf("led %d: command 0x%02x failed: %w", id, op, err)
	}
	return nil
}

// checksum is the additive 16-bit checksum the MCU expects.
func checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// verifyChecksum checks a status block whose last two bytes carry the
// big-endian checksum of the preceding bytes.
func verifyChecksum(block []byte) bool {
	n := len(block)
	want := uint16(block[n-2])<<8 | uint16(block[n-1])
	return checksum(block[:n-2]) == want
}
