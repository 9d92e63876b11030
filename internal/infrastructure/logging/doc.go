// Package logging provides structured logging for the operator.
//
// It wraps log/slog with the operator's default fields (service, version)
// and the output choices of the logging config section.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "logs/operator.log"
//
// # Usage
//
//	logger, err := logging.New(cfg.Logging, version)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	logger.Info("operation complete", "point", req.Point, "success", out.Success)
//
// Never log console credentials or the session state file contents.
package logging
