// Moderation decision engine for group chats.
//
// This package contains the coordinator that inspects each inbound group
// message and membership event, decides whether it violates community rules
// (forbidden links and keywords), and applies graduated sanctions: delete
// the message, warn the author, and ban once the warning threshold is
// reached. The forbidden-keyword list is held as an immutable in-memory
// snapshot (see `moderation/wordlist`) reloaded on demand from the
// persistent store. The transports delivering events and carrying out side
// effects sit behind small interfaces; see `cmd/vigil` for a daemon built
// on this package.
package moderation
