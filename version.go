package main

// Version is the gztunnel version.
const Version = "0.1.0"
