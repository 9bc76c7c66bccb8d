package snape2e

// Version is the release of the snape2e tool
const Version = "v0.1.0"
