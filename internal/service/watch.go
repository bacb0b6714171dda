package service

// conflate delivers v into a capacity-1 channel, displacing an unread
// older value first. Watches hand out whole view snapshots, so a consumer
// only ever needs the latest one. Conflation never reorders: the
// displaced value is always the older one.
func conflate[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
