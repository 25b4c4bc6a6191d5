// Package mqtt provides MQTT client connectivity for hcbridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) on the bridge status topic
//   - Topic builders for Home Assistant discovery, state and commands
//
// # Architecture
//
// The bridge talks to appliances over their local WebSocket and exposes the
// projected entities to Home Assistant over MQTT:
//
//	Appliance ↔ hcbridge ↔ MQTT Broker ↔ Home Assistant
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not on localhost
//   - Credentials are validated against broker ACL
//   - Payloads carry appliance state, never PSKs
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.HASS)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.AllServices(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("service call: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish(topics.EntityState("HOOD-1", "switch_lighting"), []byte("ON"), 1, true)
package mqtt
