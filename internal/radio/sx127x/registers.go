package sx127x

// SX1276/77/78/79 LoRa register map
const (
	regFifo               = 0x00
	regOpMode             = 0x01
	regFrfMsb             = 0x06
	regFrfMid             = 0x07
	regFrfLsb             = 0x08
	regPaConfig           = 0x09
	regOcp                = 0x0B
	regLna                = 0x0C
	regFifoAddrPtr        = 0x0D
	regFifoTxBaseAddr     = 0x0E
	regFifoRxBaseAddr     = 0x0F
	regFifoRxCurrentAddr  = 0x10
	regIrqFlags           = 0x12
	regRxNbBytes          = 0x13
	regPktSnrValue        = 0x19
	regPktRssiValue       = 0x1A
	regModemConfig1       = 0x1D
	regModemConfig2       = 0x1E
	regPreambleMsb        = 0x20
	regPreambleLsb        = 0x21
	regPayloadLength      = 0x22
	regModemConfig3       = 0x26
	regDetectionOptimize  = 0x31
	regDetectionThreshold = 0x37
	regSyncWord           = 0x39
	regDioMapping1        = 0x40
	regVersion            = 0x42
	regPaDac              = 0x4D
)

// Operating modes
const (
	modeLongRange    = 0x80
	modeSleep        = 0x00
	modeStandby      = 0x01
	modeTx           = 0x03
	modeRxContinuous = 0x05
	modeMask         = 0x07
)

// Register bits
const (
	paBoost = 0x80

	irqTxDone          = 0x08
	irqPayloadCRCError = 0x20
	irqRxDone          = 0x40

	implicitHeaderBit = 0x01
	lowDataRateBit    = 0x08
	agcAutoOn         = 0x04
	lnaBoostHF        = 0x03

	spiWrite = 0x80
	spiRead  = 0x7F

	chipVersion = 0x12

	// Crystal oscillator frequency
	fxosc = 32000000

	// Frequencies at or above this use the high-frequency RSSI offset
	hfPortThreshold = 779000000
)

// Supported LoRa signal bandwidths, indexed by their ModemConfig1 code
var bandwidths = []uint32{7800, 10400, 15600, 20800, 31250, 41700, 62500, 125000, 250000, 500000}
