// Package batch runs a list of point operations from a configuration file.
//
// A batch file is JSON or YAML holding either a bare list of operations or
// an object with an "operations" list:
//
//	operations:
//	  - point: 360.005-JV40_Pos
//	    action: force
//	    value: 45
//	  - point: 360.005-JV41_Pos
//	    action: unforce
//
// The action defaults to force. Each operation is retried independently;
// one failure never stops the batch.
package batch
