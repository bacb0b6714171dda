package handler

import (
	"time"

	"arichat/internal/entity"
	"arichat/internal/service"
)

// settleList waits for the watch's first list, then keeps absorbing
// immediately following refinements (per-session previews arriving right
// after the index snapshot) before returning. Timing out yields whatever
// arrived, possibly nothing.
func settleList(watch *service.ChatListWatch) []entity.ChatListEntry {
	var entries []entity.ChatListEntry
	select {
	case entries = <-watch.C():
	case <-time.After(2 * time.Second):
		return nil
	}
	for {
		select {
		case more, ok := <-watch.C():
			if !ok {
				return entries
			}
			entries = more
		case <-time.After(50 * time.Millisecond):
			return entries
		}
	}
}
