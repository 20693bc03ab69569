package nats

import "strings"

// ToSubject converts an MQTT topic to NATS subject form.
// MQTT separates levels with / and uses +/# as wildcards; NATS separates
// with . and uses */> instead.
func ToSubject(topic string) string {
	subject := strings.ReplaceAll(topic, "+", "*")
	subject = strings.ReplaceAll(subject, "#", ">")
	return strings.ReplaceAll(subject, "/", ".")
}

// ToTopic converts a NATS subject back to MQTT topic form.
func ToTopic(subject string) string {
	topic := strings.ReplaceAll(subject, "*", "+")
	topic = strings.ReplaceAll(topic, ">", "#")
	return strings.ReplaceAll(topic, ".", "/")
}
