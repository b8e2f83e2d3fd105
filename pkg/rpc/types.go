// Package rpc implements the binary framed RPC transport connecting the
// bootstrapper application (BA) to the engine, and the engine to its
// elevated companion process. Both endpoints of a connection speak the
// same wire format; only the message-type enum differs (MessageType for
// BA<->engine, ElevatedMessageType for engine<->companion).
package rpc

import "fmt"

// MessageType enumerates the BA->engine request vocabulary. It corresponds
// one-to-one with the public BA-engine API.
type MessageType uint32

const (
	MsgGetPackageCount MessageType = iota + 1
	MsgGetVariableNumeric
	MsgGetVariableString
	MsgGetVariableVersion
	MsgSetVariableNumeric
	MsgSetVariableString
	MsgSetVariableVersion
	MsgFormatString
	MsgEscapeString
	MsgEvaluateCondition
	MsgLog
	MsgSendEmbeddedError
	MsgSendEmbeddedProgress
	MsgSetUpdate
	MsgSetLocalSource
	MsgSetDownloadSource
	MsgCloseSplashScreen
	MsgDetect
	MsgPlan
	MsgElevate
	MsgApply
	MsgQuit
	MsgLaunchApprovedExe
	MsgSetUpdateSource
	MsgCompareVersions
	MsgGetRelatedBundleVariable
)

var messageTypeNames = map[MessageType]string{
	MsgGetPackageCount:          "GetPackageCount",
	MsgGetVariableNumeric:       "GetVariableNumeric",
	MsgGetVariableString:        "GetVariableString",
	MsgGetVariableVersion:       "GetVariableVersion",
	MsgSetVariableNumeric:       "SetVariableNumeric",
	MsgSetVariableString:        "SetVariableString",
	MsgSetVariableVersion:       "SetVariableVersion",
	MsgFormatString:             "FormatString",
	MsgEscapeString:             "EscapeString",
	MsgEvaluateCondition:        "EvaluateCondition",
	MsgLog:                      "Log",
	MsgSendEmbeddedError:        "SendEmbeddedError",
	MsgSendEmbeddedProgress:     "SendEmbeddedProgress",
	MsgSetUpdate:                "SetUpdate",
	MsgSetLocalSource:           "SetLocalSource",
	MsgSetDownloadSource:        "SetDownloadSource",
	MsgCloseSplashScreen:        "CloseSplashScreen",
	MsgDetect:                   "Detect",
	MsgPlan:                     "Plan",
	MsgElevate:                  "Elevate",
	MsgApply:                    "Apply",
	MsgQuit:                     "Quit",
	MsgLaunchApprovedExe:        "LaunchApprovedExe",
	MsgSetUpdateSource:          "SetUpdateSource",
	MsgCompareVersions:          "CompareVersions",
	MsgGetRelatedBundleVariable: "GetRelatedBundleVariable",
}

func (mt MessageType) String() string {
	if name, ok := messageTypeNames[mt]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%d)", uint32(mt))
}

// Validate reports whether mt is a recognized BA->engine message type.
func (mt MessageType) Validate() error {
	if _, ok := messageTypeNames[mt]; !ok {
		return fmt.Errorf("rpc: unknown message type %d", uint32(mt))
	}
	return nil
}

// ElevatedMessageType enumerates the privileged request vocabulary the
// engine sends to its elevated companion: package execution, cache
// operations, dependency registration, and approved-exe launches that
// require elevation.
type ElevatedMessageType uint32

const (
	ElevatedMsgExecuteExePackage ElevatedMessageType = iota + 1
	ElevatedMsgExecuteMsiPackage
	ElevatedMsgExecuteMspPackage
	ElevatedMsgExecuteMsuPackage
	ElevatedMsgCacheCopy
	ElevatedMsgCacheVerify
	ElevatedMsgCleanup
	ElevatedMsgDependencyRegister
	ElevatedMsgDependencyUnregister
	ElevatedMsgLaunchApprovedExe
	ElevatedMsgSessionBegin
	ElevatedMsgSessionEnd
)

var elevatedMessageTypeNames = map[ElevatedMessageType]string{
	ElevatedMsgExecuteExePackage:    "ExecuteExePackage",
	ElevatedMsgExecuteMsiPackage:    "ExecuteMsiPackage",
	ElevatedMsgExecuteMspPackage:    "ExecuteMspPackage",
	ElevatedMsgExecuteMsuPackage:    "ExecuteMsuPackage",
	ElevatedMsgCacheCopy:            "CacheCopy",
	ElevatedMsgCacheVerify:          "CacheVerify",
	ElevatedMsgCleanup:              "Cleanup",
	ElevatedMsgDependencyRegister:   "DependencyRegister",
	ElevatedMsgDependencyUnregister: "DependencyUnregister",
	ElevatedMsgLaunchApprovedExe:    "LaunchApprovedExe",
	ElevatedMsgSessionBegin:         "SessionBegin",
	ElevatedMsgSessionEnd:           "SessionEnd",
}

func (mt ElevatedMessageType) String() string {
	if name, ok := elevatedMessageTypeNames[mt]; ok {
		return name
	}
	return fmt.Sprintf("ElevatedMessageType(%d)", uint32(mt))
}

// Validate reports whether mt is a recognized engine->companion message type.
func (mt ElevatedMessageType) Validate() error {
	if _, ok := elevatedMessageTypeNames[mt]; !ok {
		return fmt.Errorf("rpc: unknown elevated message type %d", uint32(mt))
	}
	return nil
}

// CurrentAPIVersion is the API version every request this engine sends
// carries. RecvRequest reports any other version as
// ErrUnsupportedAPIVersion, and the caller answers that request with
// ENotImpl without decoding its params.
const CurrentAPIVersion uint32 = 1
