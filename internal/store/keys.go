// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package store

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tomtom215/engagement/internal/models"
)

// Badger key layout:
//
//	c/{contentID}                             item record (JSON)
//	o/{hex(ownerID)}/{createdAtNanos}/{contentID}  owner index, no value
//	i/{contentID}/{kind}/{userID}             membership, uniqueness check
//	t/{contentID}/{kind}/{nanos}/{userID}     membership, ordered listing
//	m/{contentID}/{commentID}                 top-level comment
//	r/{contentID}/{commentID}/{replyID}       reply
//	v/{contentID}/{viewID}                    view log entry
//
// Owner IDs are hex encoded so one owner's prefix can never match another
// owner whose ID extends it (team vs team/bob).
// Comment, reply and view IDs are UUIDv7 so key order is creation order.
const (
	prefixContent = "c/"
	prefixOwner   = "o/"
	prefixMember  = "i/"
	prefixTimed   = "t/"
	prefixComment = "m/"
	prefixReply   = "r/"
	prefixView    = "v/"
)

func contentKey(id string) []byte {
	return []byte(prefixContent + id)
}

func ownerPrefix(ownerID string) []byte {
	return []byte(prefixOwner + hex.EncodeToString([]byte(ownerID)) + "/")
}

func ownerKey(ownerID string, createdAt time.Time, id string) []byte {
	return append(ownerPrefix(ownerID), nanos(createdAt)+"/"+id...)
}

// ownerSeekKey is the first possible owner index key at or after since.
func ownerSeekKey(ownerID string, since time.Time) []byte {
	return append(ownerPrefix(ownerID), nanos(since)+"/"...)
}

func memberPrefix(id string, kind models.InteractionKind) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/", prefixMember, id, kind))
}

func memberKey(id string, kind models.InteractionKind, userID string) []byte {
	return append(memberPrefix(id, kind), userID...)
}

func timedPrefix(id string, kind models.InteractionKind) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/", prefixTimed, id, kind))
}

func timedKey(id string, kind models.InteractionKind, createdAt time.Time, userID string) []byte {
	return append(timedPrefix(id, kind), nanos(createdAt)+"/"+userID...)
}

func commentPrefix(id string) []byte {
	return []byte(prefixComment + id + "/")
}

func commentKey(id, commentID string) []byte {
	return append(commentPrefix(id), commentID...)
}

func replyPrefix(id string) []byte {
	return []byte(prefixReply + id + "/")
}

func replyCommentPrefix(id, commentID string) []byte {
	return append(replyPrefix(id), commentID+"/"...)
}

func replyKey(id, commentID, replyID string) []byte {
	return append(replyCommentPrefix(id, commentID), replyID...)
}

func viewPrefix(id string) []byte {
	return []byte(prefixView + id + "/")
}

func viewKey(id, viewID string) []byte {
	return append(viewPrefix(id), viewID...)
}

// interactionPrefixes lists every prefix holding records of one item.
func interactionPrefixes(id string) [][]byte {
	prefixes := [][]byte{commentPrefix(id), replyPrefix(id), viewPrefix(id)}
	for _, kind := range []models.InteractionKind{models.KindLike, models.KindSave, models.KindRepost} {
		prefixes = append(prefixes, memberPrefix(id, kind), timedPrefix(id, kind))
	}
	return prefixes
}

// nanos renders t as fixed-width Unix nanoseconds so keys sort chronologically.
func nanos(t time.Time) string {
	n := t.UnixNano()
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%020d", n)
}
