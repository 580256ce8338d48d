// Package shipper delivers events, one JSON document per line, to a remote
// collector over a long-lived TCP connection.
//
// # Usage
//
//	cfg, err := config.Load(config.CandidatePaths(".")...)
//	if err != nil {
//	    return err
//	}
//	s, err := shipper.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if err := s.Write(ctx, frame.Event{"eventid": "cowrie.login.failed"}); err != nil {
//	    var de *shipper.DeliveryError
//	    if errors.As(err, &de) {
//	        // de.Event was not delivered; buffer, drop or escalate it.
//	    }
//	}
//
// # Guarantees
//
// Write is synchronous: it returns only after the whole frame has been handed
// to the socket, or after it has failed. There is no internal queue, so a
// single producer's events reach the wire in call order. A broken connection
// is redialed and the in-flight frame resent according to the RetryPolicy
// (one retry by default); frames already sent are never repeated.
//
// The Shipper never logs. Attach an Observer to see connects, sends and
// failures.
package shipper
