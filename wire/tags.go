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

// Fabric tag namespace (§4.6 "Tag assignment"). Tags are strictly
// informational hints to the fabric adapter; the header's MessageType
// remains authoritative for dispatch. Each tag is given the same numeric
// value as the MessageType it accompanies, since the reserved namespace
// maps one-to-one onto message types.
const (
	TagRegister  = uint32(DeviceRegister)
	TagRemove    = uint32(DeviceRemove)
	TagConfig    = uint32(ConfigLossModel) // shared by CONFIG_LOSS_MODEL and CONFIG_DELAY_MODEL sends
	TagTx        = uint32(TxRequest)
	TagRx        = uint32(RxNotification)
	TagPosition  = uint32(PositionUpdate)
	TagHeartbeat = uint32(Heartbeat)
	TagAck       = uint32(ConfigAck)
	TagError     = uint32(ErrorNotify)
)
