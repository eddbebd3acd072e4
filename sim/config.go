package sim

import (
	"fmt"

	"github.com/pelletier/go-toml"
)

// RoutingProtocol names one of the pluggable routing implementations a
// Config may select via `routing = "..."`.
type RoutingProtocol string

const (
	RoutingGPSR    RoutingProtocol = "gpsr"
	RoutingDSDV    RoutingProtocol = "dsdv"
	RoutingGRAd    RoutingProtocol = "grad"
	RoutingOPAR    RoutingProtocol = "opar"
	RoutingPARRoT  RoutingProtocol = "parrot"
	RoutingQRouting RoutingProtocol = "qrouting"
	RoutingQGeo    RoutingProtocol = "qgeo"
	RoutingQldv    RoutingProtocol = "qldv"
)

// MACProtocol names one of the two pluggable MAC implementations.
type MACProtocol string

const (
	MACCsmaCa     MACProtocol = "csmaca"
	MACPureAloha  MACProtocol = "aloha"
)

// TrafficModel selects the generator's inter-arrival distribution.
type TrafficModel string

const (
	TrafficPoisson TrafficModel = "poisson"
	TrafficUniform TrafficModel = "uniform"
)

// Config holds every tunable constant of a scenario, loaded from a TOML
// scenario file. Defaults mirror original_source/utils/config.py's
// module-level constants exactly, so an empty scenario file reproduces
// the original's baseline scenario.
type Config struct {
	cm map[string]interface{}

	// World
	MapLength, MapWidth, MapHeight float64
	SimTime                        Time
	NumberOfDrones                 int
	StaticCase                     bool
	Seed                           int64

	// Radio
	TransmittingPower float64
	LightSpeed        float64
	CarrierFrequency  float64
	NoisePower        float64
	SNRThresholdDB    float64
	PathLossExponent  float64

	// Packets
	PacketLifetime          Time
	MaxTTL                  int
	IPHeaderLengthBits      int
	MACHeaderLengthBits     int
	PHYHeaderLengthBits     int
	DataPayloadLengthBits   int
	AckPacketLengthBits     int
	HelloPayloadLengthBits  int
	MaxQueueSize            int

	// PHY
	BitRate      float64 // bps
	Bandwidth    float64 // Hz
	SensingRange float64 // m

	// MAC
	SlotDuration            Time
	SIFSDuration            Time
	DIFSDuration            Time
	CWMin                   int
	AckTimeout              Time
	MaxRetransmissionAttempt int

	// Energy
	ProfileDragCoefficient   float64
	AirDensity               float64
	RotorSolidity            float64
	RotorDiscArea            float64
	BladeAngularVelocity     float64
	RotorRadius              float64
	IncrementalCorrection    float64
	AircraftWeight           float64
	RotorBladeTipSpeed       float64
	MeanRotorInducedVelocity float64
	FuselageDragRatio        float64
	InitialEnergy            float64
	EnergyThreshold          float64

	// Protocol selection
	Routing  RoutingProtocol
	MAC      MACProtocol
	Traffic  TrafficModel
	HelloInterval Time
}

// DefaultConfig returns the baseline scenario, with every constant set
// to the value original_source/utils/config.py used (IEEE 802.11b PHY
// parameters: 2.4GHz, 11Mbps, 20MHz, 20us slots, 10us SIFS).
func DefaultConfig() *Config {
	difs := Time(10 + 2*20)
	return &Config{
		MapLength:      600,
		MapWidth:       600,
		MapHeight:      500,
		SimTime:        35_000_000,
		NumberOfDrones: 15,
		StaticCase:     true,
		Seed:           1,

		TransmittingPower: 0.1,
		LightSpeed:        3e8,
		CarrierFrequency:  2.4e9,
		NoisePower:        4e-11,
		SNRThresholdDB:    6,
		PathLossExponent:  2,

		PacketLifetime:         10_000_000,
		MaxTTL:                 16,
		IPHeaderLengthBits:     20 * 8,
		MACHeaderLengthBits:    14 * 8,
		PHYHeaderLengthBits:    (128 + 16) + (8 + 8 + 16 + 16),
		DataPayloadLengthBits:  1024 * 8,
		AckPacketLengthBits:    16*8 + 14*8,
		HelloPayloadLengthBits: 256,
		MaxQueueSize:           64,

		BitRate:      11e6,
		Bandwidth:    20e6,
		SensingRange: 600,

		SlotDuration:             20,
		SIFSDuration:             10,
		DIFSDuration:             difs,
		CWMin:                    31,
		AckTimeout:               100_000,
		MaxRetransmissionAttempt: 5,

		ProfileDragCoefficient:   0.012,
		AirDensity:               1.225,
		RotorSolidity:            0.05,
		RotorDiscArea:            0.79,
		BladeAngularVelocity:     400,
		RotorRadius:              0.5,
		IncrementalCorrection:    0.1,
		AircraftWeight:           100,
		RotorBladeTipSpeed:       500,
		MeanRotorInducedVelocity: 7.2,
		FuselageDragRatio:        0.3,
		InitialEnergy:            20_000,
		EnergyThreshold:          2000,

		Routing:       RoutingGPSR,
		MAC:           MACCsmaCa,
		Traffic:       TrafficPoisson,
		HelloInterval: 1_000_000,
	}
}

// DataPacketLengthBits is IPHeader+MACHeader+PHYHeader+payload, the
// length injected onto the channel for a Data frame.
func (c *Config) DataPacketLengthBits() int {
	return c.IPHeaderLengthBits + c.MACHeaderLengthBits + c.PHYHeaderLengthBits + c.DataPayloadLengthBits
}

// HelloPacketLengthBits is IPHeader+MACHeader+PHYHeader+hello payload.
func (c *Config) HelloPacketLengthBits() int {
	return c.IPHeaderLengthBits + c.MACHeaderLengthBits + c.PHYHeaderLengthBits + c.HelloPayloadLengthBits
}

// Propagation extracts the subset of Config the propagation math
// needs.
func (c *Config) Propagation() PropagationParams {
	return PropagationParams{
		TransmittingPower: c.TransmittingPower,
		LightSpeed:        c.LightSpeed,
		CarrierFrequency:  c.CarrierFrequency,
		NoisePower:        c.NoisePower,
		SNRThresholdDB:    c.SNRThresholdDB,
		PathLossExponent:  c.PathLossExponent,
	}
}

// Energy builds the default RotaryWingEnergyModel from Config's
// hardware coefficients.
func (c *Config) Energy() RotaryWingEnergyModel {
	return RotaryWingEnergyModel{
		ProfileDragCoefficient:   c.ProfileDragCoefficient,
		AirDensity:               c.AirDensity,
		RotorSolidity:            c.RotorSolidity,
		RotorDiscArea:            c.RotorDiscArea,
		BladeAngularVelocity:     c.BladeAngularVelocity,
		RotorRadius:              c.RotorRadius,
		IncrementalCorrection:    c.IncrementalCorrection,
		AircraftWeight:           c.AircraftWeight,
		RotorBladeTipSpeed:       c.RotorBladeTipSpeed,
		MeanRotorInducedVelocity: c.MeanRotorInducedVelocity,
		FuselageDragRatio:        c.FuselageDragRatio,
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("supplied value could not be parsed as a number")
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("supplied value could not be parsed as an integer")
}

func toBool(v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("supplied value could not be parsed as a boolean")
}

func toStringVal(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("supplied value could not be parsed as a string")
}

func toRouting(v interface{}) (RoutingProtocol, error) {
	s, err := toStringVal(v)
	if err != nil {
		return "", err
	}
	switch RoutingProtocol(s) {
	case RoutingGPSR, RoutingDSDV, RoutingGRAd, RoutingOPAR, RoutingPARRoT, RoutingQRouting, RoutingQGeo, RoutingQldv:
		return RoutingProtocol(s), nil
	}
	return "", fmt.Errorf("unrecognised routing protocol %q", s)
}

func toMAC(v interface{}) (MACProtocol, error) {
	s, err := toStringVal(v)
	if err != nil {
		return "", err
	}
	switch MACProtocol(s) {
	case MACCsmaCa, MACPureAloha:
		return MACProtocol(s), nil
	}
	return "", fmt.Errorf("unrecognised mac protocol %q", s)
}

func toTraffic(v interface{}) (TrafficModel, error) {
	s, err := toStringVal(v)
	if err != nil {
		return "", err
	}
	switch TrafficModel(s) {
	case TrafficPoisson, TrafficUniform:
		return TrafficModel(s), nil
	}
	return "", fmt.Errorf("unrecognised traffic model %q", s)
}

// applyTable walks a flat TOML table of key/value pairs and, for each
// key present, parses and assigns it onto c.
// Unrecognised keys are an error, matching the teacher's strict
// "unrecognised parameter" behaviour in l2tp/config.go.
func (c *Config) applyTable(table map[string]interface{}) error {
	for k, v := range table {
		var err error
		switch k {
		case "map_length":
			c.MapLength, err = toFloat(v)
		case "map_width":
			c.MapWidth, err = toFloat(v)
		case "map_height":
			c.MapHeight, err = toFloat(v)
		case "sim_time":
			var f float64
			f, err = toFloat(v)
			c.SimTime = Time(f)
		case "number_of_drones":
			c.NumberOfDrones, err = toInt(v)
		case "static_case":
			c.StaticCase, err = toBool(v)
		case "seed":
			var n int
			n, err = toInt(v)
			c.Seed = int64(n)
		case "transmitting_power":
			c.TransmittingPower, err = toFloat(v)
		case "snr_threshold":
			c.SNRThresholdDB, err = toFloat(v)
		case "sensing_range":
			c.SensingRange, err = toFloat(v)
		case "bit_rate":
			c.BitRate, err = toFloat(v)
		case "bandwidth":
			c.Bandwidth, err = toFloat(v)
		case "max_ttl":
			c.MaxTTL, err = toInt(v)
		case "max_queue_size":
			c.MaxQueueSize, err = toInt(v)
		case "ack_timeout":
			var f float64
			f, err = toFloat(v)
			c.AckTimeout = Time(f)
		case "max_retransmission_attempt":
			c.MaxRetransmissionAttempt, err = toInt(v)
		case "cw_min":
			c.CWMin, err = toInt(v)
		case "initial_energy":
			c.InitialEnergy, err = toFloat(v)
		case "energy_threshold":
			c.EnergyThreshold, err = toFloat(v)
		case "hello_interval":
			var f float64
			f, err = toFloat(v)
			c.HelloInterval = Time(f)
		case "routing":
			c.Routing, err = toRouting(v)
		case "mac":
			c.MAC, err = toMAC(v)
		case "traffic":
			c.Traffic, err = toTraffic(v)
		default:
			return fmt.Errorf("unrecognised parameter %q", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %s: %v", k, err)
		}
	}
	return nil
}

func newConfig(tree *toml.Tree) (*Config, error) {
	cfg := DefaultConfig()
	cfg.cm = tree.ToMap()
	if sim, ok := cfg.cm["simulation"]; ok {
		table, ok := sim.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("'simulation' must be a table")
		}
		if err := cfg.applyTable(table); err != nil {
			return nil, fmt.Errorf("failed to parse simulation table: %v", err)
		}
	}
	return cfg, nil
}

// LoadFile loads a scenario Config from path, falling back to
// DefaultConfig for every field the file does not mention.
func LoadFile(path string) (*Config, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %v", err)
	}
	return newConfig(tree)
}

// LoadString loads a scenario Config from TOML text.
func LoadString(content string) (*Config, error) {
	tree, err := toml.Load(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load config string: %v", err)
	}
	return newConfig(tree)
}

// ToMap exposes the raw parsed TOML tree for application-specific use.
func (c *Config) ToMap() map[string]interface{} {
	return c.cm
}
