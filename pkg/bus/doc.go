// Package bus provides the link layer of the instrument bus.
package bus

// The instrument bus is a half-duplex multi-drop serial line shared by a
// master controller and peripheral devices (probes, actuators, encoders,
// the shutter). Every packet is framed by START/END and each data byte is
// split into two tagged nibble bytes, so any wire byte can be classified
// on its own: control byte, high nibble or low nibble. A receiver joining
// in the middle of traffic resynchronizes on the next START.
//
// ACK and NACK are single unframed bytes. They carry no reference to the
// frame they answer; matching them (and reply packets) with a sent frame,
// along with any timeout and retry policy, is up to the caller.
//
// There is no checksum. A line error turning one tagged nibble into
// another is not detected here.
//
// Inbound bytes must be delivered to a Session serially (one goroutine
// at a time). Session.Run does that by itself; transports pushing bytes
// through Session.Feed must guarantee it.
