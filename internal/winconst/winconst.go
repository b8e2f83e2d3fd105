// Package winconst collects the Win32 well-known constants the engine
// needs but that aren't specific to any one component: process exit codes,
// the bundle's uninstall registry root, and the well-known shell folder
// identifiers the variable store's built-ins resolve against.
package winconst

// Process exit codes (§6 "Exit codes"). The engine translates a plan's
// final HRESULT into one of these before returning from main.
const (
	ExitSuccess               = 0
	ExitInstallUserExit       = 1602 // ERROR_INSTALL_USEREXIT
	ExitSuccessRebootRequired = 3010 // ERROR_SUCCESS_REBOOT_REQUIRED
	ExitSuccessRebootInitiated = 1641 // ERROR_SUCCESS_REBOOT_INITIATED
	ExitFailRebootRequired    = 3011 // ERROR_FAIL_REBOOT_REQUIRED
	ExitFailRebootInitiated   = 1642 // ERROR_FAIL_REBOOT_INITIATED
)

// Win32 error codes the engine maps a failing HRESULT onto when it falls
// in FACILITY_WIN32 (rpc.Win32FromFacility).
const (
	ErrorAccessDenied  = 5
	ErrorInvalidData   = 13
	ErrorFileNotFound  = 2
	ErrorNotReady      = 21
	ErrorAlreadyExists = 183
	ErrorCancelled     = 1223
	ErrorMachineLocked = 1271
)

// UninstallRegistryRoot is the registry key tree bundle registration,
// resume state (pkg/state), and ARP entries live under. The bundle ID is
// appended as a subkey name.
const UninstallRegistryRoot = `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`

// DependentsRegistryRoot is where a bundle records itself as a dependent of
// a package it shares with other bundles, per the dependency-registration
// collaborator (§ plan DependencyOp).
const DependentsRegistryRoot = `SOFTWARE\Classes\Installer\Dependencies`

// FolderID names a well-known shell folder the variable store's built-ins
// resolve on demand (§ Built-in variables).
type FolderID string

const (
	FolderProgramFiles      FolderID = "ProgramFilesFolder"
	FolderProgramFilesX86   FolderID = "ProgramFiles6432Folder"
	FolderCommonAppData     FolderID = "CommonAppDataFolder"
	FolderLocalAppData      FolderID = "LocalAppDataFolder"
	FolderAppData           FolderID = "AppDataFolder"
	FolderWindows           FolderID = "WindowsFolder"
	FolderSystem            FolderID = "SystemFolder"
	FolderTemp              FolderID = "TempFolder"
	FolderDesktop           FolderID = "DesktopFolder"
	FolderPersonal          FolderID = "PersonalFolder"
	FolderStartMenu         FolderID = "StartMenuFolder"
	FolderPrograms          FolderID = "ProgramMenuFolder"
	FolderFonts             FolderID = "FontsFolder"
)

// AllFolderIDs lists every well-known folder the built-in variable set
// exposes, in a stable order useful for enumeration and tests.
var AllFolderIDs = []FolderID{
	FolderProgramFiles,
	FolderProgramFilesX86,
	FolderCommonAppData,
	FolderLocalAppData,
	FolderAppData,
	FolderWindows,
	FolderSystem,
	FolderTemp,
	FolderDesktop,
	FolderPersonal,
	FolderStartMenu,
	FolderPrograms,
	FolderFonts,
}
