package template

const glslPrelude = `#version 460 core

layout(location = 0) out vec4 fragColor;
in vec2 fragCoord;

uniform vec2 iResolution;
uniform float iTime;
uniform float iTimeDelta;
uniform float iFrameRate;
uniform int iFrame;
uniform vec4 iMouse;
uniform vec4 iDate;

`

const glslEpilogue = `
void main()
{
    vec2 uv = gl_FragCoord.xy / iResolution.xy;
    vec3 col = userColor(uv);
    fragColor = vec4(col, 1.0);
}
`

const glslVertex = `#version 460 core

layout(location = 0) in vec3 aPos;
layout(location = 1) in vec3 aColor;

out vec2 fragCoord;

void main()
{
    fragCoord = aPos.xy * 0.5 + 0.5;
    gl_Position = vec4(aPos, 1.0);
}
`

const glslDefaultFragment Fragment = `vec3 userColor(vec2 uv)
{
    return 0.5 + 0.5 * cos(iTime + uv.xyx + vec3(0, 2, 4));
}`

const wgslPrelude = `@group(0) @binding(0) var<uniform> iResolution: vec2<f32>;
@group(0) @binding(1) var<uniform> iTime: f32;
@group(0) @binding(2) var<uniform> iTimeDelta: f32;
@group(0) @binding(3) var<uniform> iFrameRate: f32;
@group(0) @binding(4) var<uniform> iFrame: i32;
@group(0) @binding(5) var<uniform> iMouse: vec4<f32>;
@group(0) @binding(6) var<uniform> iDate: vec4<f32>;

`

const wgslEpilogue = `
@fragment
fn fs_main(@builtin(position) frag_coord: vec4<f32>) -> @location(0) vec4<f32> {
    let uv = frag_coord.xy / iResolution;
    return vec4<f32>(userColor(uv), 1.0);
}
`

const wgslVertex = `struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) frag_coord: vec2<f32>,
}

@vertex
fn vs_main(@location(0) pos: vec3<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(pos, 1.0);
    out.frag_coord = pos.xy * 0.5 + 0.5;
    return out;
}
`

const wgslDefaultFragment Fragment = `fn userColor(uv: vec2<f32>) -> vec3<f32> {
    return 0.5 + 0.5 * cos(vec3<f32>(iTime) + uv.xyx + vec3<f32>(0.0, 2.0, 4.0));
}`
