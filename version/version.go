package version

// Version is the current semantic version of txfetch.
const Version = "0.3.1"
