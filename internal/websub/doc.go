// Package websub implements the protocol boundary of the WebSub push feed:
// signature verification of inbound pushes, Atom feed decoding, topic and
// channel-id validation, and the outbound hub client used to subscribe and
// unsubscribe.
//
// Everything here is plumbing the notification core trusts once it has
// passed; the core only ever sees validated video and channel identifiers.
package websub
