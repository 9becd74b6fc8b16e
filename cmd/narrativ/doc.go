// Command narrativ is the command-line client for narrativd. It plans
// stories, drives image generation through the orchestrator, and manages the
// saved research and image boards.
package main
