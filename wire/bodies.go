// Copyright (c) 2020-2023, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// errShortBody is returned (wrapped with context) when a body buffer is
// shorter than its fixed-width prefix requires.
func errShortBody(what string, need, got int) error {
	return fmt.Errorf("wire: %s body too short: need %d bytes, got %d", what, need, got)
}

// TxRequestBody is the TX_REQUEST message body (§6).
type TxRequestBody struct {
	DeviceId   uint32
	PhyId      uint32
	TxPowerPw  uint64
	Payload    []byte
	TxVector   []byte
}

const txRequestFixedLen = 4 + 4 + 8 + 4 + 4

func (b *TxRequestBody) Serialize() []byte {
	buf := make([]byte, txRequestFixedLen+len(b.Payload)+len(b.TxVector))
	binary.BigEndian.PutUint32(buf[0:4], b.DeviceId)
	binary.BigEndian.PutUint32(buf[4:8], b.PhyId)
	binary.BigEndian.PutUint64(buf[8:16], b.TxPowerPw)
	binary.BigEndian.PutUint32(buf[16:20], uint32(len(b.Payload)))
	binary.BigEndian.PutUint32(buf[20:24], uint32(len(b.TxVector)))
	n := copy(buf[24:], b.Payload)
	copy(buf[24+n:], b.TxVector)
	return buf
}

func ParseTxRequestBody(data []byte) (TxRequestBody, error) {
	if len(data) < txRequestFixedLen {
		return TxRequestBody{}, errShortBody("TX_REQUEST", txRequestFixedLen, len(data))
	}
	payloadLen := binary.BigEndian.Uint32(data[16:20])
	txVectorLen := binary.BigEndian.Uint32(data[20:24])
	need := txRequestFixedLen + int(payloadLen) + int(txVectorLen)
	if len(data) < need {
		return TxRequestBody{}, errShortBody("TX_REQUEST", need, len(data))
	}
	b := TxRequestBody{
		DeviceId:  binary.BigEndian.Uint32(data[0:4]),
		PhyId:     binary.BigEndian.Uint32(data[4:8]),
		TxPowerPw: binary.BigEndian.Uint64(data[8:16]),
	}
	b.Payload = append([]byte(nil), data[24:24+payloadLen]...)
	b.TxVector = append([]byte(nil), data[24+payloadLen:24+payloadLen+txVectorLen]...)
	return b, nil
}

// RxNotificationBody is the RX_NOTIFICATION message body (§6).
type RxNotificationBody struct {
	ReceiverDeviceId    uint32
	TransmitterDeviceId uint32
	PhyId               uint32
	RxPowerPw           uint64
	RxPowerDbm          float64
	PathLossDb          float64
	DistanceM           float64
	FrequencyHz         uint32
	PropagationDelayNs  uint64
	TxTimestampNs       uint64
	Payload             []byte
}

const rxNotificationFixedLen = 4 + 4 + 4 + 8 + 8 + 8 + 8 + 4 + 8 + 4 + 8

func (b *RxNotificationBody) Serialize() []byte {
	buf := make([]byte, rxNotificationFixedLen+len(b.Payload))
	binary.BigEndian.PutUint32(buf[0:4], b.ReceiverDeviceId)
	binary.BigEndian.PutUint32(buf[4:8], b.TransmitterDeviceId)
	binary.BigEndian.PutUint32(buf[8:12], b.PhyId)
	binary.BigEndian.PutUint64(buf[12:20], b.RxPowerPw)
	putFloat64(buf[20:28], b.RxPowerDbm)
	putFloat64(buf[28:36], b.PathLossDb)
	putFloat64(buf[36:44], b.DistanceM)
	binary.BigEndian.PutUint32(buf[44:48], b.FrequencyHz)
	binary.BigEndian.PutUint64(buf[48:56], b.PropagationDelayNs)
	binary.BigEndian.PutUint32(buf[56:60], uint32(len(b.Payload)))
	binary.BigEndian.PutUint64(buf[60:68], b.TxTimestampNs)
	copy(buf[68:], b.Payload)
	return buf
}

func ParseRxNotificationBody(data []byte) (RxNotificationBody, error) {
	if len(data) < rxNotificationFixedLen {
		return RxNotificationBody{}, errShortBody("RX_NOTIFICATION", rxNotificationFixedLen, len(data))
	}
	payloadLen := binary.BigEndian.Uint32(data[56:60])
	need := rxNotificationFixedLen + int(payloadLen)
	if len(data) < need {
		return RxNotificationBody{}, errShortBody("RX_NOTIFICATION", need, len(data))
	}
	b := RxNotificationBody{
		ReceiverDeviceId:    binary.BigEndian.Uint32(data[0:4]),
		TransmitterDeviceId: binary.BigEndian.Uint32(data[4:8]),
		PhyId:               binary.BigEndian.Uint32(data[8:12]),
		RxPowerPw:           binary.BigEndian.Uint64(data[12:20]),
		RxPowerDbm:          getFloat64(data[20:28]),
		PathLossDb:          getFloat64(data[28:36]),
		DistanceM:           getFloat64(data[36:44]),
		FrequencyHz:         binary.BigEndian.Uint32(data[44:48]),
		PropagationDelayNs:  binary.BigEndian.Uint64(data[48:56]),
		TxTimestampNs:       binary.BigEndian.Uint64(data[60:68]),
	}
	b.Payload = append([]byte(nil), data[68:68+payloadLen]...)
	return b, nil
}

// DeviceRegisterBody is the DEVICE_REGISTER message body (§6). AntennaGainDbi
// and Frequencies carry the radio's antenna/frequency-restriction profile
// (§4.5) so that distributed registration and fallback registration populate
// the registry identically (§4.5 "fallback must produce results numerically
// identical to distributed mode"); an empty Frequencies set means "all
// frequencies supported", matching registry.Record.Frequencies' own convention.
type DeviceRegisterBody struct {
	PhyId            uint32
	PhyType          uint32
	ChannelNumber    uint32
	ChannelWidthMhz  uint32
	NodeId           uint32
	PosX, PosY, PosZ float64
	AntennaGainDbi   float64
	Frequencies      []uint32
}

const deviceRegisterFixedLen = 4 + 4 + 4 + 4 + 4 + 8 + 8 + 8 + 8 + 4

func (b *DeviceRegisterBody) Serialize() []byte {
	buf := make([]byte, deviceRegisterFixedLen+4*len(b.Frequencies))
	binary.BigEndian.PutUint32(buf[0:4], b.PhyId)
	binary.BigEndian.PutUint32(buf[4:8], b.PhyType)
	binary.BigEndian.PutUint32(buf[8:12], b.ChannelNumber)
	binary.BigEndian.PutUint32(buf[12:16], b.ChannelWidthMhz)
	binary.BigEndian.PutUint32(buf[16:20], b.NodeId)
	putFloat64(buf[20:28], b.PosX)
	putFloat64(buf[28:36], b.PosY)
	putFloat64(buf[36:44], b.PosZ)
	putFloat64(buf[44:52], b.AntennaGainDbi)
	binary.BigEndian.PutUint32(buf[52:56], uint32(len(b.Frequencies)))
	for i, f := range b.Frequencies {
		binary.BigEndian.PutUint32(buf[56+4*i:60+4*i], f)
	}
	return buf
}

func ParseDeviceRegisterBody(data []byte) (DeviceRegisterBody, error) {
	if len(data) < deviceRegisterFixedLen {
		return DeviceRegisterBody{}, errShortBody("DEVICE_REGISTER", deviceRegisterFixedLen, len(data))
	}
	freqCount := binary.BigEndian.Uint32(data[52:56])
	need := deviceRegisterFixedLen + 4*int(freqCount)
	if len(data) < need {
		return DeviceRegisterBody{}, errShortBody("DEVICE_REGISTER", need, len(data))
	}
	b := DeviceRegisterBody{
		PhyId:           binary.BigEndian.Uint32(data[0:4]),
		PhyType:         binary.BigEndian.Uint32(data[4:8]),
		ChannelNumber:   binary.BigEndian.Uint32(data[8:12]),
		ChannelWidthMhz: binary.BigEndian.Uint32(data[12:16]),
		NodeId:          binary.BigEndian.Uint32(data[16:20]),
		PosX:            getFloat64(data[20:28]),
		PosY:            getFloat64(data[28:36]),
		PosZ:            getFloat64(data[36:44]),
		AntennaGainDbi:  getFloat64(data[44:52]),
	}
	if freqCount > 0 {
		b.Frequencies = make([]uint32, freqCount)
		for i := range b.Frequencies {
			b.Frequencies[i] = binary.BigEndian.Uint32(data[56+4*i : 60+4*i])
		}
	}
	return b, nil
}

// PositionUpdateBody is the POSITION_UPDATE message body (§6).
type PositionUpdateBody struct {
	DeviceId                   uint32
	PosX, PosY, PosZ           float64
	Velocity, Heading          float64
}

const positionUpdateLen = 4 + 8 + 8 + 8 + 8 + 8

func (b *PositionUpdateBody) Serialize() []byte {
	buf := make([]byte, positionUpdateLen)
	binary.BigEndian.PutUint32(buf[0:4], b.DeviceId)
	putFloat64(buf[4:12], b.PosX)
	putFloat64(buf[12:20], b.PosY)
	putFloat64(buf[20:28], b.PosZ)
	putFloat64(buf[28:36], b.Velocity)
	putFloat64(buf[36:44], b.Heading)
	return buf
}

func ParsePositionUpdateBody(data []byte) (PositionUpdateBody, error) {
	if len(data) < positionUpdateLen {
		return PositionUpdateBody{}, errShortBody("POSITION_UPDATE", positionUpdateLen, len(data))
	}
	return PositionUpdateBody{
		DeviceId: binary.BigEndian.Uint32(data[0:4]),
		PosX:     getFloat64(data[4:12]),
		PosY:     getFloat64(data[12:20]),
		PosZ:     getFloat64(data[20:28]),
		Velocity: getFloat64(data[28:36]),
		Heading:  getFloat64(data[36:44]),
	}, nil
}

// ConfigType distinguishes the two model-configuration message kinds that
// share the CONFIG_LOSS_MODEL/CONFIG_DELAY_MODEL body layout (§6).
type ConfigType uint32

const (
	ConfigTypeDelay ConfigType = 0
	ConfigTypeLoss  ConfigType = 1
)

// ConfigBody is the CONFIG_LOSS_MODEL / CONFIG_DELAY_MODEL message body (§6).
// Params is an opaque blob whose schema is owned by the configured model, per
// the Design Notes' "Interface abstraction over models" — the core never
// looks inside it.
type ConfigBody struct {
	Type          ConfigType
	ModelTypeHash uint32
	Params        []byte
}

const configFixedLen = 4 + 4 + 4

func (b *ConfigBody) Serialize() []byte {
	buf := make([]byte, configFixedLen+len(b.Params))
	binary.BigEndian.PutUint32(buf[0:4], uint32(b.Type))
	binary.BigEndian.PutUint32(buf[4:8], b.ModelTypeHash)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(b.Params)))
	copy(buf[12:], b.Params)
	return buf
}

func ParseConfigBody(data []byte) (ConfigBody, error) {
	if len(data) < configFixedLen {
		return ConfigBody{}, errShortBody("CONFIG", configFixedLen, len(data))
	}
	paramsLen := binary.BigEndian.Uint32(data[8:12])
	need := configFixedLen + int(paramsLen)
	if len(data) < need {
		return ConfigBody{}, errShortBody("CONFIG", need, len(data))
	}
	b := ConfigBody{
		Type:          ConfigType(binary.BigEndian.Uint32(data[0:4])),
		ModelTypeHash: binary.BigEndian.Uint32(data[4:8]),
	}
	b.Params = append([]byte(nil), data[12:12+paramsLen]...)
	return b, nil
}

// AckKind distinguishes what a CONFIG_ACK message is acknowledging. The wire
// layout in §6 documents only the generic "config" ack body; this adds the
// discriminator the Design Notes' Open-Questions resolution calls for so one
// ack type can also resolve a DEVICE_REGISTER round trip (§4.4, §8 scenario 6).
type AckKind uint32

const (
	AckKindRegister AckKind = 0
	AckKindConfig   AckKind = 1
)

// ConfigAckBody is the CONFIG_ACK message body. For AckKindRegister,
// AssignedDeviceId carries the newly assigned device id and AckedSequence
// echoes the DEVICE_REGISTER's sequence number (§4.4, §8 scenario 6).
type ConfigAckBody struct {
	Kind             AckKind
	AssignedDeviceId uint32
	AckedSequence    uint32
}

const configAckLen = 4 + 4 + 4

func (b *ConfigAckBody) Serialize() []byte {
	buf := make([]byte, configAckLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(b.Kind))
	binary.BigEndian.PutUint32(buf[4:8], b.AssignedDeviceId)
	binary.BigEndian.PutUint32(buf[8:12], b.AckedSequence)
	return buf
}

func ParseConfigAckBody(data []byte) (ConfigAckBody, error) {
	if len(data) < configAckLen {
		return ConfigAckBody{}, errShortBody("CONFIG_ACK", configAckLen, len(data))
	}
	return ConfigAckBody{
		Kind:             AckKind(binary.BigEndian.Uint32(data[0:4])),
		AssignedDeviceId: binary.BigEndian.Uint32(data[4:8]),
		AckedSequence:    binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// ErrorKind mirrors the §7 error-kind taxonomy for wire transport.
type ErrorKind uint32

const (
	ErrorKindProtocolViolation ErrorKind = iota
	ErrorKindUnknownDevice
	ErrorKindCausalViolation
	ErrorKindModelError
	ErrorKindFabricError
	ErrorKindRegistrationTimeout
	ErrorKindShutdown
)

// ErrorBody is the ERROR_RESPONSE (ERROR_NOTIFY) message body (§6).
type ErrorBody struct {
	Kind            ErrorKind
	ContextSequence uint32
	Message         string
}

const errorFixedLen = 4 + 4 + 4

func (b *ErrorBody) Serialize() []byte {
	msg := []byte(b.Message)
	buf := make([]byte, errorFixedLen+len(msg))
	binary.BigEndian.PutUint32(buf[0:4], uint32(b.Kind))
	binary.BigEndian.PutUint32(buf[4:8], b.ContextSequence)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(msg)))
	copy(buf[12:], msg)
	return buf
}

func ParseErrorBody(data []byte) (ErrorBody, error) {
	if len(data) < errorFixedLen {
		return ErrorBody{}, errShortBody("ERROR_RESPONSE", errorFixedLen, len(data))
	}
	msgLen := binary.BigEndian.Uint32(data[8:12])
	need := errorFixedLen + int(msgLen)
	if len(data) < need {
		return ErrorBody{}, errShortBody("ERROR_RESPONSE", need, len(data))
	}
	return ErrorBody{
		Kind:            ErrorKind(binary.BigEndian.Uint32(data[0:4])),
		ContextSequence: binary.BigEndian.Uint32(data[4:8]),
		Message:         string(data[12 : 12+msgLen]),
	}, nil
}

// DeviceRemoveBody is the DEVICE_REMOVE message body: just the device id,
// carried in the header's DeviceId field, so this body is empty. Defined for
// symmetry/documentation purposes.
type DeviceRemoveBody struct{}

func (b *DeviceRemoveBody) Serialize() []byte { return nil }

func putFloat64(buf []byte, v float64) {
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
}

func getFloat64(buf []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(buf))
}
