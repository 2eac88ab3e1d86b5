package protocol

// ProtocolVersion is the wire protocol version this server implements,
// equivalent to VNSIProtocolVersion in the original plugin. Only the
// version-2 (uid-keyed channels/recordings) wire shapes are implemented; a
// client requesting a higher version is rejected by OpLogin.
const ProtocolVersion uint32 = 2
