package session

import "sort"

// registry is the set of topics whose most recent subscribe attempt
// succeeded with no unsubscribe or failure since. Not safe for concurrent
// use on its own; all access goes through the session mutex.
type registry struct {
	topics map[string]struct{}
}

func newRegistry() *registry {
	return &registry{topics: make(map[string]struct{})}
}

func (r *registry) add(topic string) {
	r.topics[topic] = struct{}{}
}

func (r *registry) remove(topic string) {
	delete(r.topics, topic)
}

func (r *registry) contains(topic string) bool {
	_, ok := r.topics[topic]
	return ok
}

func (r *registry) len() int {
	return len(r.topics)
}

// snapshot returns the registered topics in sorted order
func (r *registry) snapshot() []string {
	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

func (r *registry) clear() {
	r.topics = make(map[string]struct{})
}
