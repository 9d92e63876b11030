// Package mqtt provides MQTT client connectivity for the operator.
//
// This package manages:
//   - Connection to the site broker with auto-reconnect
//   - Publishing action records with QoS guarantees
//   - Sensor topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
// Every topic lives under a configurable prefix (default graylogic/operator):
//
//	{prefix}/status            retained online/offline status (LWT)
//	{prefix}/action/{point}    one JSON action record per attempt
//	{prefix}/event/{action}    controller evaluations and other point-less records
//	{prefix}/sensor/{metric}   sensor readings consumed by the auto controller
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllSensors(), 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
package mqtt
