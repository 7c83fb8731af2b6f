// Package protocol defines the celerix-store wire format.
//
// Every message is a RESP array of bulk strings:
//
//	*<n>\r\n
//	$<len>\r\n<bytes>\r\n   (n times)
//
// Requests are [OP, ID, args...]:
//
//	GET           id persona app key
//	SET           id persona app key <json>
//	DEL           id persona app key
//	PING          id
//	LIST_PERSONAS id
//	LIST_APPS     id persona
//	DUMP          id persona app
//	DUMP_APP      id app
//	GET_GLOBAL    id app key
//	MOVE          id src dst app key
//
// Responses are [ID, STATUS, ...]:
//
//	OK        [payload]
//	NOT_FOUND [detail]
//	ERR       code detail
//
// Payloads are JSON. ID is chosen by the client and echoed verbatim,
// so a response can always be matched to its request.
//
// Framing errors (ErrProtocol, ErrLimitExceeded from ReadFrame) leave
// the stream in an unknown state and the connection must be closed. A
// well-framed but invalid request yields a *RequestError, which is
// answered with ERR and the connection stays usable.
package protocol
