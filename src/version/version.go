package version

//Version of lagoon
const Version = "0.1.0"
